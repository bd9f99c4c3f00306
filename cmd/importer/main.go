package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"social-tracker/internal/adapters/scraper"
	"social-tracker/internal/app"
	"social-tracker/internal/domain"
	"social-tracker/internal/infra/config"
	applog "social-tracker/internal/infra/log"
	"social-tracker/internal/usecase/ingest"
	"social-tracker/internal/usecase/normalize"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		filePath string
		dirPath  string
		feedPath string
		pagePath string
		brand    string
		maxPosts int
	)
	flag.StringVar(&filePath, "file", "", "Path to a Meta Business Suite CSV export")
	flag.StringVar(&dirPath, "dir", "", "Folder with CSV exports")
	flag.StringVar(&feedPath, "feed", "", "Raw Facebook feed capture produced by the scraper")
	flag.StringVar(&pagePath, "page", "", "Saved Facebook page HTML; records the follower count")
	flag.StringVar(&brand, "brand", "", "Default brand for rows without a recognisable account")
	flag.IntVar(&maxPosts, "max", 100, "Maximum posts to take from -feed")
	flag.Parse()

	cfg := config.Load()
	logger := applog.NewLoggerTo(os.Stderr, cfg.AppEnv)

	if filePath == "" && dirPath == "" && feedPath == "" && pagePath == "" {
		logger.Fatal().Msg("importer: укажите -file, -dir, -feed или -page")
	}
	if (feedPath != "" || pagePath != "") && brand == "" {
		logger.Fatal().Msg("importer: для -feed и -page нужен -brand")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("importer: не удалось инициализировать приложение")
	}
	defer a.Close()

	if brand != "" && !a.Brands.Has(brand) {
		logger.Fatal().Str("brand", brand).Msg("importer: неизвестный бренд")
	}

	failed := false
	if filePath != "" {
		f, err := os.Open(filePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("importer: не удалось открыть файл")
		}
		res, err := a.Ingest.ImportCSV(ctx, filepath.Base(filePath), f, brand)
		_ = f.Close()
		printResult(res)
		if err != nil {
			logger.Error().Err(err).Str("file", filePath).Msg("importer: ошибка импорта")
			failed = true
		}
	}
	if dirPath != "" {
		results, err := a.Ingest.ImportFolder(ctx, dirPath, brand)
		for _, res := range results {
			printResult(res)
		}
		if err != nil {
			logger.Error().Err(err).Str("dir", dirPath).Msg("importer: ошибка импорта каталога")
			failed = true
		}
	}
	if feedPath != "" {
		if err := importFeed(ctx, a, feedPath, brand, maxPosts); err != nil {
			logger.Error().Err(err).Msg("importer: ошибка импорта ленты")
			failed = true
		}
	}
	if pagePath != "" {
		if err := importPage(ctx, a, pagePath, brand); err != nil {
			logger.Error().Err(err).Msg("importer: ошибка разбора страницы")
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

func printResult(res ingest.ImportResult) {
	if res.Filename == "" {
		return
	}
	fmt.Printf("%s [%s]: %s\n", res.Filename, res.Platform, res.Message)
}

func importFeed(ctx context.Context, a *app.App, path, brand string, maxPosts int) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	records := scraper.ParseFeed(string(raw), maxPosts)
	posts := make([]domain.Post, 0, len(records))
	for _, rec := range records {
		posts = append(posts, normalize.FromRecord(rec, domain.PlatformFacebook))
	}
	res, err := a.Ingest.InsertBatch(ctx, posts, domain.PlatformFacebook, brand)
	fmt.Printf("%s [facebook]: %s\n", filepath.Base(path), res.String())
	return err
}

func importPage(ctx context.Context, a *app.App, path, brand string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := scraper.ParsePageInfo(f)
	if err != nil {
		return err
	}
	if info.Followers <= 0 {
		return fmt.Errorf("%s: число подписчиков не найдено", filepath.Base(path))
	}
	if err := a.Followers.Record(ctx, domain.PlatformFacebook, brand, info.Followers, ""); err != nil {
		return err
	}
	fmt.Printf("%s [facebook]: %s, %d followers recorded\n", filepath.Base(path), info.Name, info.Followers)
	return nil
}
