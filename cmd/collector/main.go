package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"social-tracker/internal/adapters/meta"
	"social-tracker/internal/adapters/tiktok"
	"social-tracker/internal/app"
	"social-tracker/internal/infra/config"
	applog "social-tracker/internal/infra/log"
	"social-tracker/internal/infra/metrics"
	"social-tracker/internal/usecase/followers"
	"social-tracker/internal/usecase/postsync"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось инициализировать приложение")
	}
	defer a.Close()

	syncQueue, closeQueue, err := a.Queue()
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: не удалось подключить очередь")
	}
	defer closeQueue()

	if rq, ok := a.RedisQueue(); ok {
		moved, err := rq.Requeue(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("collector: не удалось вернуть незавершённые задачи")
		} else if moved > 0 {
			logger.Info().Int("jobs", moved).Msg("collector: незавершённые задачи возвращены в очередь")
		}
	}

	metaClient := meta.New(meta.Config{
		BaseURL:    cfg.Meta.BaseURL,
		APIVersion: cfg.Meta.APIVersion,
		RPS:        cfg.Meta.RPS,
		Timeout:    cfg.Meta.Timeout,
	}, logger)
	tiktokClient := tiktok.New(tiktok.Config{
		BaseURL: cfg.TikTok.BaseURL,
		RPS:     cfg.TikTok.RPS,
		Timeout: cfg.TikTok.Timeout,
	}, logger)

	worker := &jobWorker{
		log:              logger,
		queue:            syncQueue,
		statuses:         a.Store,
		accounts:         a,
		posts:            postsync.NewService(metaClient, tiktokClient, a.Ingest, a.Store, a.Notifier, logger),
		followers:        followers.NewSyncer(a.Followers, metaClient, tiktokClient, a.Store, logger),
		reports:          a.Reports(),
		historySinceYear: cfg.HistorySinceYear,
	}

	logger.Info().Msg("collector: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("collector: остановлен")
}
