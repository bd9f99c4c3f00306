package followers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
)

// Recorder записывает снимок подписчиков.
type Recorder interface {
	Record(ctx context.Context, platform domain.Platform, brand string, followers int64, month string) error
}

// Syncer подтягивает подписчиков из API платформ.
type Syncer struct {
	ledger  Recorder
	meta    domain.MetaSource
	tiktok  domain.TikTokSource
	metrics domain.BusinessMetricRepo
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSyncer создаёт синхронизатор; tiktok и metrics могут быть nil.
func NewSyncer(ledger Recorder, meta domain.MetaSource, tiktok domain.TikTokSource, metricsRepo domain.BusinessMetricRepo, logger zerolog.Logger) *Syncer {
	return &Syncer{
		ledger:  ledger,
		meta:    meta,
		tiktok:  tiktok,
		metrics: metricsRepo,
		logger:  logger.With().Str("component", "followers_sync").Logger(),
		now:     time.Now,
	}
}

// SyncBrand обновляет снимки бренда по всем настроенным платформам.
// Ошибки платформ собираются вместе; отсутствующий аккаунт пропускается.
func (s *Syncer) SyncBrand(ctx context.Context, acc domain.BrandAccount) error {
	var errs []error
	recorded := 0

	if acc.PageID == "" || acc.MetaToken == "" {
		s.logger.Info().Str("brand", acc.Brand).Msg("followers: meta-аккаунт не настроен, пропускаем")
	} else {
		n, err := s.syncFacebook(ctx, acc)
		recorded += n
		if err != nil {
			errs = append(errs, fmt.Errorf("facebook: %w", err))
		}
		n, err = s.syncInstagram(ctx, acc)
		recorded += n
		if err != nil {
			errs = append(errs, fmt.Errorf("instagram: %w", err))
		}
	}

	if acc.TikTokToken != "" && s.tiktok != nil {
		count, err := s.tiktok.FollowerCount(ctx, acc.TikTokToken)
		if err != nil {
			errs = append(errs, fmt.Errorf("tiktok: %w", err))
		} else if err := s.ledger.Record(ctx, domain.PlatformTikTok, acc.Brand, count, ""); err != nil {
			errs = append(errs, fmt.Errorf("tiktok: %w", err))
		} else {
			recorded++
		}
	}

	if recorded > 0 && s.metrics != nil {
		if err := s.metrics.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:    domain.BusinessMetricEventFollowersSynced,
			Brand:    acc.Brand,
			Metadata: map[string]any{"snapshots": recorded},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("followers: не удалось записать бизнес-метрику")
		}
	}
	return errors.Join(errs...)
}

// syncFacebook берёт последнее дневное значение page_follows каждого месяца.
func (s *Syncer) syncFacebook(ctx context.Context, acc domain.BrandAccount) (int, error) {
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	values, err := s.meta.FacebookDailyFollows(ctx, acc, since, now)
	if err != nil {
		return 0, err
	}
	perMonth := make(map[string]int64)
	var months []string
	for _, v := range values {
		month := domain.MonthOf(v.EndTime)
		if domain.ValidateMonth(month) != nil {
			continue
		}
		if _, seen := perMonth[month]; !seen {
			months = append(months, month)
		}
		perMonth[month] = v.Value
	}
	sort.Strings(months)
	recorded := 0
	for _, month := range months {
		if err := s.ledger.Record(ctx, domain.PlatformFacebook, acc.Brand, perMonth[month], month); err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}

// syncInstagram записывает текущее значение и восстанавливает прошлые месяцы по дневным приростам.
func (s *Syncer) syncInstagram(ctx context.Context, acc domain.BrandAccount) (int, error) {
	ig, err := s.meta.InstagramAccount(ctx, acc)
	if err != nil {
		if errors.Is(err, domain.ErrAccountMissing) {
			s.logger.Info().Str("brand", acc.Brand).Msg("followers: instagram не привязан, пропускаем")
			return 0, nil
		}
		return 0, err
	}
	current := domain.CurrentMonth(s.now())
	if err := s.ledger.Record(ctx, domain.PlatformInstagram, acc.Brand, ig.Followers, current); err != nil {
		return 0, err
	}
	recorded := 1

	deltas, err := s.meta.InstagramFollowerDeltas(ctx, acc, ig.ID)
	if err != nil {
		return recorded, err
	}
	for _, snap := range BackfillFromDeltas(ig.Followers, current, deltas) {
		if err := s.ledger.Record(ctx, domain.PlatformInstagram, acc.Brand, snap.Followers, snap.Month); err != nil {
			return recorded, err
		}
		recorded++
	}
	return recorded, nil
}

// BackfillFromDeltas восстанавливает число подписчиков на конец прошлых месяцев.
// Месяц M получает значение до вычитания собственного прироста M.
// Отрицательные значения обрезаются до нуля.
func BackfillFromDeltas(currentFollowers int64, currentMonth string, deltas []domain.DailyValue) []domain.FollowerSnapshot {
	perMonth := make(map[string]int64)
	for _, d := range deltas {
		month := domain.MonthOf(d.EndTime)
		if domain.ValidateMonth(month) != nil {
			continue
		}
		perMonth[month] += d.Value
	}
	months := make([]string, 0, len(perMonth))
	for month := range perMonth {
		if month < currentMonth {
			months = append(months, month)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	running := currentFollowers - perMonth[currentMonth]
	out := make([]domain.FollowerSnapshot, 0, len(months))
	for _, month := range months {
		value := running
		if value < 0 {
			value = 0
		}
		out = append(out, domain.FollowerSnapshot{Platform: domain.PlatformInstagram, Month: month, Followers: value})
		running -= perMonth[month]
	}
	return out
}
