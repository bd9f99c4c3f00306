package postsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
	"social-tracker/internal/usecase/normalize"
)

// RecentLimit ограничивает число последних публикаций за синхронизацию.
const RecentLimit = 10

// BatchInserter сохраняет посты платформы.
type BatchInserter interface {
	InsertBatch(ctx context.Context, posts []domain.Post, platform domain.Platform, defaultBrand string) (domain.BatchResult, error)
}

// Service загружает посты из API платформ.
type Service struct {
	meta     domain.MetaSource
	tiktok   domain.TikTokSource
	ingest   BatchInserter
	metrics  domain.BusinessMetricRepo
	notifier domain.Notifier
	logger   zerolog.Logger
}

// NewService создаёт сервис синхронизации; tiktok, metrics и notifier могут быть nil.
func NewService(meta domain.MetaSource, tiktok domain.TikTokSource, ingest BatchInserter, metricsRepo domain.BusinessMetricRepo, notifier domain.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		meta:     meta,
		tiktok:   tiktok,
		ingest:   ingest,
		metrics:  metricsRepo,
		notifier: notifier,
		logger:   logger.With().Str("component", "sync").Logger(),
	}
}

func toPosts(records []domain.RawRecord, platform domain.Platform) []domain.Post {
	posts := make([]domain.Post, 0, len(records))
	for _, rec := range records {
		posts = append(posts, normalize.FromRecord(rec, platform))
	}
	return posts
}

func metaConfigured(acc domain.BrandAccount) bool {
	return acc.PageID != "" && acc.MetaToken != ""
}

// SyncRecent загружает последние публикации Facebook и Instagram.
func (s *Service) SyncRecent(ctx context.Context, acc domain.BrandAccount) (domain.BatchResult, error) {
	var total domain.BatchResult
	if !metaConfigured(acc) {
		return total, fmt.Errorf("sync: %s: %w", acc.Brand, domain.ErrAccountMissing)
	}

	var errs []error
	fb, err := s.meta.FacebookPosts(ctx, acc, RecentLimit)
	if err != nil {
		errs = append(errs, fmt.Errorf("facebook: %w", err))
	} else {
		res, err := s.ingest.InsertBatch(ctx, toPosts(fb, domain.PlatformFacebook), domain.PlatformFacebook, acc.Brand)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}

	ig, err := s.meta.InstagramPosts(ctx, acc, RecentLimit)
	switch {
	case errors.Is(err, domain.ErrAccountMissing):
		s.logger.Info().Str("brand", acc.Brand).Msg("sync: instagram не привязан")
	case err != nil:
		errs = append(errs, fmt.Errorf("instagram: %w", err))
	default:
		res, err := s.ingest.InsertBatch(ctx, toPosts(ig, domain.PlatformInstagram), domain.PlatformInstagram, acc.Brand)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}

	s.finish(ctx, acc.Brand, "api", total)
	return total, errors.Join(errs...)
}

// SyncHistory загружает историю с sinceYear постранично; прерванная загрузка
// сохраняет уже обработанные страницы.
func (s *Service) SyncHistory(ctx context.Context, acc domain.BrandAccount, sinceYear int) (domain.BatchResult, error) {
	var total domain.BatchResult
	if !metaConfigured(acc) {
		return total, fmt.Errorf("sync: %s: %w", acc.Brand, domain.ErrAccountMissing)
	}
	pageInto := func(platform domain.Platform) domain.PageFunc {
		return func(records []domain.RawRecord) error {
			res, err := s.ingest.InsertBatch(ctx, toPosts(records, platform), platform, acc.Brand)
			total.Add(res)
			return err
		}
	}

	var errs []error
	if err := s.meta.FacebookHistory(ctx, acc, sinceYear, pageInto(domain.PlatformFacebook)); err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) || ctx.Err() != nil {
			return total, err
		}
		errs = append(errs, fmt.Errorf("facebook: %w", err))
	}
	err := s.meta.InstagramHistory(ctx, acc, sinceYear, pageInto(domain.PlatformInstagram))
	switch {
	case errors.Is(err, domain.ErrAccountMissing):
		s.logger.Info().Str("brand", acc.Brand).Msg("sync: instagram не привязан")
	case errors.Is(err, domain.ErrStorageUnavailable) || (err != nil && ctx.Err() != nil):
		return total, err
	case err != nil:
		errs = append(errs, fmt.Errorf("instagram: %w", err))
	}

	s.finish(ctx, acc.Brand, "history", total)
	return total, errors.Join(errs...)
}

// SyncTikTok загружает видео TikTok.
func (s *Service) SyncTikTok(ctx context.Context, acc domain.BrandAccount, maxPages int) (domain.BatchResult, error) {
	var total domain.BatchResult
	if acc.TikTokToken == "" || s.tiktok == nil {
		return total, fmt.Errorf("sync: %s: tiktok: %w", acc.Brand, domain.ErrAccountMissing)
	}
	err := s.tiktok.Videos(ctx, acc.TikTokToken, maxPages, func(records []domain.RawRecord) error {
		res, err := s.ingest.InsertBatch(ctx, toPosts(records, domain.PlatformTikTok), domain.PlatformTikTok, acc.Brand)
		total.Add(res)
		return err
	})
	if err != nil {
		return total, fmt.Errorf("tiktok: %w", err)
	}
	s.finish(ctx, acc.Brand, "tiktok_api", total)
	return total, nil
}

func (s *Service) finish(ctx context.Context, brand, source string, res domain.BatchResult) {
	s.logger.Info().Str("brand", brand).Str("source", source).Str("result", res.String()).Msg("sync: завершено")
	if s.metrics != nil {
		if err := s.metrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:    domain.BusinessMetricEventPostsSynced,
			Brand:    brand,
			Metadata: map[string]any{"source": source, "inserted": res.Inserted, "merged": res.Merged, "failed": res.Failed},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("sync: не удалось записать бизнес-метрику")
		}
	}
	if s.notifier != nil && res.Inserted > 0 {
		if err := s.notifier.Notify(ctx, fmt.Sprintf("%s (%s): %s", brand, source, res.String())); err != nil {
			s.logger.Warn().Err(err).Msg("sync: уведомление не отправлено")
		}
	}
}
