package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
	"social-tracker/internal/usecase/detect"
	"social-tracker/internal/usecase/engagement"
	"social-tracker/internal/usecase/normalize"
)

// TableReader разбирает CSV-поток.
type TableReader interface {
	Read(r io.Reader) (domain.Table, error)
}

// Service загружает посты в хранилище.
type Service struct {
	posts     domain.PostRepo
	uploads   domain.UploadRepo
	followers engagement.FollowerLookup
	brands    detect.BrandMatcher
	reader    TableReader
	cache     domain.PostCacheInvalidator
	metrics   domain.BusinessMetricRepo
	notifier  domain.Notifier
	logger    zerolog.Logger
}

// Deps содержит зависимости сервиса; Cache, Metrics и Notifier необязательны.
type Deps struct {
	Posts     domain.PostRepo
	Uploads   domain.UploadRepo
	Followers engagement.FollowerLookup
	Brands    detect.BrandMatcher
	Reader    TableReader
	Cache     domain.PostCacheInvalidator
	Metrics   domain.BusinessMetricRepo
	Notifier  domain.Notifier
}

// NewService создаёт сервис загрузки.
func NewService(deps Deps, logger zerolog.Logger) *Service {
	return &Service{
		posts:     deps.Posts,
		uploads:   deps.Uploads,
		followers: deps.Followers,
		brands:    deps.Brands,
		reader:    deps.Reader,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		notifier:  deps.Notifier,
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
}

// InsertBatch сохраняет посты по порядку и возвращает итог.
// Ошибка отдельного поста учитывается в Failed; при domain.ErrStorageUnavailable
// батч прерывается и возвращается частичный итог вместе с ошибкой.
func (s *Service) InsertBatch(ctx context.Context, posts []domain.Post, platform domain.Platform, defaultBrand string) (domain.BatchResult, error) {
	res, _, err := s.insertBatch(ctx, posts, platform, defaultBrand)
	return res, err
}

func (s *Service) insertBatch(ctx context.Context, posts []domain.Post, platform domain.Platform, defaultBrand string) (domain.BatchResult, map[string]int, error) {
	start := time.Now()
	var (
		res      domain.BatchResult
		perBrand = make(map[string]int)
		batchErr error
	)
	rates := engagement.NewBatchFollowers(s.followers)
	defaultBrand = domain.NormalizeBrand(defaultBrand)

	for i := range posts {
		post := posts[i]
		post.Platform = platform
		post.Brand = domain.NormalizeBrand(post.Brand)
		if post.Brand == "" {
			post.Brand = defaultBrand
		}
		if post.Brand == "" {
			res.SkippedUnknownBrand++
			continue
		}
		if strings.TrimSpace(post.PublishedAt) == "" {
			res.SkippedNoDate++
			continue
		}
		perBrand[post.Brand]++

		if err := rates.Apply(ctx, &post); err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				batchErr = err
				break
			}
			s.logger.Warn().Err(err).Str("brand", post.Brand).Str("published_at", post.PublishedAt).Msg("ingest: не удалось получить подписчиков")
			res.Failed++
			continue
		}

		inserted, err := s.posts.UpsertPost(ctx, post)
		if err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				batchErr = err
				break
			}
			s.logger.Warn().Err(err).Str("brand", post.Brand).Str("published_at", post.PublishedAt).Msg("ingest: пост пропущен")
			res.Failed++
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Merged++
		}
	}

	if res.Inserted+res.Merged > 0 && s.cache != nil {
		if err := s.cache.InvalidatePosts(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("ingest: не удалось сбросить кэш постов")
		}
	}
	metrics.ObserveBatch(string(platform), defaultBrand, res.Inserted, res.Merged,
		res.SkippedUnknownBrand+res.SkippedNoDate, res.Failed, start)

	if batchErr != nil {
		s.logger.Error().Err(batchErr).Str("result", res.String()).Msg("ingest: батч прерван")
		return res, perBrand, fmt.Errorf("загрузка батча: %w", batchErr)
	}
	return res, perBrand, nil
}

// ImportResult описывает импорт одного файла.
type ImportResult struct {
	Filename string                `json:"filename"`
	Platform domain.Platform       `json:"platform"`
	Result   domain.BatchResult    `json:"result"`
	Message  string                `json:"message"`
	Uploads  []domain.UploadRecord `json:"uploads"`
}

// ParseTable превращает таблицу CSV в посты платформы.
// Строки без даты отбрасываются и учитываются в SkippedNoDate.
func (s *Service) ParseTable(table domain.Table, filename string) (domain.Platform, []domain.Post, int) {
	platform := detect.DetectPlatform(table.Header, filename)
	cols := normalize.ResolveColumns(table.Header)
	dateCol := cols[normalize.FieldDate]

	posts := make([]domain.Post, 0, len(table.Rows))
	dropped := 0
	for _, row := range table.Rows {
		if dateCol == "" || strings.TrimSpace(row[dateCol]) == "" {
			dropped++
			continue
		}
		post := normalize.FromCSVRow(row, cols, platform, filename)
		if s.brands != nil {
			if brand, ok := detect.DetectBrand(row, s.brands); ok {
				post.Brand = brand
			}
		}
		posts = append(posts, post)
	}
	return platform, posts, dropped
}

// ImportCSV импортирует один CSV-файл и пишет журнал загрузок по брендам.
// Журнал фиксирует каждый импорт: на бренд одна запись с числом его постов в файле,
// даже если все они уже были сохранены раньше.
func (s *Service) ImportCSV(ctx context.Context, filename string, r io.Reader, defaultBrand string) (ImportResult, error) {
	table, err := s.reader.Read(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("чтение %s: %w: %w", filename, domain.ErrInvalidInput, err)
	}
	platform, posts, dropped := s.ParseTable(table, filename)
	return s.importPosts(ctx, filename, platform, posts, dropped, defaultBrand)
}

func (s *Service) importPosts(ctx context.Context, filename string, platform domain.Platform, posts []domain.Post, dropped int, defaultBrand string) (ImportResult, error) {
	out := ImportResult{Filename: filename, Platform: platform}
	res, perBrand, err := s.insertBatch(ctx, posts, platform, defaultBrand)
	res.SkippedNoDate += dropped
	out.Result = res
	out.Message = res.String()
	if err != nil {
		return out, err
	}

	brands := make([]string, 0, len(perBrand))
	for brand := range perBrand {
		brands = append(brands, brand)
	}
	sort.Strings(brands)
	for _, brand := range brands {
		count := perBrand[brand]
		rec, err := s.uploads.LogUpload(ctx, domain.UploadRecord{
			Filename:  filename,
			Platform:  platform,
			Brand:     brand,
			PostCount: count,
		})
		if err != nil {
			return out, fmt.Errorf("журнал загрузки: %w", err)
		}
		out.Uploads = append(out.Uploads, rec)
	}

	s.logger.Info().Str("file", filename).Str("platform", string(platform)).Str("result", out.Message).Msg("ingest: файл загружен")
	s.recordMetric(ctx, domain.BusinessMetric{
		Event:    domain.BusinessMetricEventCSVImported,
		Platform: platform,
		Brand:    defaultBrand,
		Metadata: map[string]any{"file": filename, "inserted": res.Inserted, "merged": res.Merged, "failed": res.Failed},
	})
	s.notify(ctx, fmt.Sprintf("%s (%s): %s", filename, platform, out.Message))
	return out, nil
}

// UpdatePostLabels задаёт тему и кампанию поста.
func (s *Service) UpdatePostLabels(ctx context.Context, id int64, theme, campaign string) error {
	if err := s.posts.UpdatePostLabels(ctx, id, strings.TrimSpace(theme), strings.TrimSpace(campaign)); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidatePosts(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("ingest: не удалось сбросить кэш постов")
		}
	}
	return nil
}

// LogUpload добавляет запись в журнал вручную.
func (s *Service) LogUpload(ctx context.Context, rec domain.UploadRecord) (domain.UploadRecord, error) {
	return s.uploads.LogUpload(ctx, rec)
}

// ListUploads возвращает журнал загрузок.
func (s *Service) ListUploads(ctx context.Context) ([]domain.UploadRecord, error) {
	return s.uploads.ListUploads(ctx)
}

func (s *Service) recordMetric(ctx context.Context, m domain.BusinessMetric) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RecordBusinessMetric(ctx, m); err != nil {
		s.logger.Warn().Err(err).Str("event", m.Event).Msg("ingest: не удалось записать бизнес-метрику")
	}
}

func (s *Service) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Warn().Err(err).Msg("ingest: уведомление не отправлено")
	}
}
