package followers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

// Ledger хранит помесячные снимки подписчиков и кэширует чтения.
type Ledger struct {
	repo   domain.FollowerRepo
	cache  domain.Cache
	ttl    time.Duration
	logger zerolog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewLedger создаёт сервис; cache может быть nil.
func NewLedger(repo domain.FollowerRepo, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "followers").Logger(),
		now:    time.Now,
	}
}

type cachedLookup struct {
	Found    bool                    `json:"found"`
	Snapshot domain.FollowerSnapshot `json:"snapshot"`
}

// Ключи чтений содержат поколение пары (платформа, бренд). Record увеличивает его,
// поэтому загрузка, начатая до записи, кладёт результат под старый ключ.
func generationKey(platform domain.Platform, brand string) string {
	return fmt.Sprintf("gen:followers:%s:%s", platform, brand)
}

func exactKey(platform domain.Platform, brand, month string) string {
	return fmt.Sprintf("followers:%s:%s:%s", platform, brand, month)
}

func previousKey(platform domain.Platform, brand, month string) string {
	return fmt.Sprintf("followers:prev:%s:%s:%s", platform, brand, month)
}

// Record сохраняет число подписчиков; пустой month означает текущий месяц UTC.
func (l *Ledger) Record(ctx context.Context, platform domain.Platform, brand string, followers int64, month string) error {
	if _, err := domain.ParsePlatform(string(platform)); err != nil {
		return err
	}
	brand = domain.NormalizeBrand(brand)
	if brand == "" {
		return fmt.Errorf("%w: пустой бренд", domain.ErrInvalidInput)
	}
	if followers < 0 {
		return fmt.Errorf("%w: отрицательное число подписчиков %d", domain.ErrInvalidInput, followers)
	}
	if month == "" {
		month = domain.CurrentMonth(l.now())
	} else if err := domain.ValidateMonth(month); err != nil {
		return err
	}

	if err := l.repo.UpsertFollowerSnapshot(ctx, domain.FollowerSnapshot{
		Platform:  platform,
		Brand:     brand,
		Month:     month,
		Followers: followers,
	}); err != nil {
		return fmt.Errorf("запись подписчиков: %w", err)
	}
	metrics.IncFollowerSnapshot(string(platform))

	if l.cache != nil {
		if _, err := l.cache.Incr(ctx, generationKey(platform, brand)); err != nil {
			l.logger.Warn().Err(err).Str("platform", string(platform)).Str("brand", brand).Msg("followers: не удалось сбросить кэш")
		}
	}
	return nil
}

// Lookup возвращает подписчиков за точный месяц; false, если снимка нет.
func (l *Ledger) Lookup(ctx context.Context, platform domain.Platform, brand, month string) (int64, bool, error) {
	brand = domain.NormalizeBrand(brand)
	res, err := l.readThrough(ctx, platform, brand, exactKey(platform, brand, month), func() (cachedLookup, error) {
		n, ok, err := l.repo.GetFollowerCount(ctx, platform, brand, month)
		if err != nil {
			return cachedLookup{}, err
		}
		return cachedLookup{Found: ok, Snapshot: domain.FollowerSnapshot{Platform: platform, Brand: brand, Month: month, Followers: n}}, nil
	})
	if err != nil {
		return 0, false, err
	}
	return res.Snapshot.Followers, res.Found, nil
}

// LookupPreviousMonth возвращает последний снимок раньше текущего месяца.
// Пропуски месяцев допустимы.
func (l *Ledger) LookupPreviousMonth(ctx context.Context, platform domain.Platform, brand string) (domain.FollowerSnapshot, bool, error) {
	brand = domain.NormalizeBrand(brand)
	current := domain.CurrentMonth(l.now())
	res, err := l.readThrough(ctx, platform, brand, previousKey(platform, brand, current), func() (cachedLookup, error) {
		snap, ok, err := l.repo.GetFollowerBefore(ctx, platform, brand, current)
		if err != nil {
			return cachedLookup{}, err
		}
		return cachedLookup{Found: ok, Snapshot: snap}, nil
	})
	if err != nil {
		return domain.FollowerSnapshot{}, false, err
	}
	return res.Snapshot, res.Found, nil
}

// History возвращает все снимки пары от старых месяцев к новым.
func (l *Ledger) History(ctx context.Context, platform domain.Platform, brand string) ([]domain.FollowerSnapshot, error) {
	return l.repo.ListFollowerSnapshots(ctx, platform, domain.NormalizeBrand(brand))
}

// generation возвращает текущее поколение пары; false, если кэш недоступен.
func (l *Ledger) generation(ctx context.Context, platform domain.Platform, brand string) (string, bool) {
	data, err := l.cache.Get(ctx, generationKey(platform, brand))
	switch {
	case err == nil:
		if _, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			return string(data), true
		}
		return "", false
	case errors.Is(err, domain.ErrCacheMiss):
		return "0", true
	default:
		l.logger.Warn().Err(err).Msg("followers: кэш недоступен")
		return "", false
	}
}

func (l *Ledger) readThrough(ctx context.Context, platform domain.Platform, brand, key string, load func() (cachedLookup, error)) (cachedLookup, error) {
	if l.cache == nil {
		return load()
	}
	gen, ok := l.generation(ctx, platform, brand)
	if !ok {
		return load()
	}
	full := "g" + gen + ":" + key
	if data, err := l.cache.Get(ctx, full); err == nil {
		var res cachedLookup
		if err := json.Unmarshal(data, &res); err == nil {
			return res, nil
		}
	}

	v, err, _ := l.group.Do(full, func() (any, error) {
		res, err := load()
		if err != nil {
			return cachedLookup{}, err
		}
		if data, err := json.Marshal(res); err == nil {
			if err := l.cache.Set(ctx, full, data, l.ttl); err != nil {
				l.logger.Warn().Err(err).Str("key", full).Msg("followers: не удалось записать кэш")
			}
		}
		return res, nil
	})
	if err != nil {
		return cachedLookup{}, err
	}
	return v.(cachedLookup), nil
}
