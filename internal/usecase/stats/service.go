package stats

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
)

const generationKey = "gen:posts"

// Service отдаёт агрегаты и листинги постов через кэш.
// Ключи содержат номер поколения; InvalidatePosts сбрасывает все сразу.
type Service struct {
	repo   domain.PostRepo
	cache  domain.Cache
	ttl    time.Duration
	logger zerolog.Logger
	group  singleflight.Group
}

var _ domain.PostCacheInvalidator = (*Service)(nil)

// NewService создаёт сервис; cache может быть nil.
func NewService(repo domain.PostRepo, cache domain.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "stats").Logger(),
	}
}

// MonthlyStats возвращает агрегаты по месяцам; пустая платформа означает все.
func (s *Service) MonthlyStats(ctx context.Context, platform domain.Platform) ([]domain.MonthlyStat, error) {
	return readThrough(ctx, s, "stats:"+string(platform), func() ([]domain.MonthlyStat, error) {
		return s.repo.MonthlyStats(ctx, platform)
	})
}

// Posts возвращает посты, новые сверху; пустые фильтры означают все.
func (s *Service) Posts(ctx context.Context, platform domain.Platform, brand string) ([]domain.Post, error) {
	return s.PostsInMonth(ctx, domain.PostFilter{Platform: platform, Brand: brand})
}

// PostsInMonth возвращает посты по полному фильтру.
func (s *Service) PostsInMonth(ctx context.Context, filter domain.PostFilter) ([]domain.Post, error) {
	filter.Brand = domain.NormalizeBrand(filter.Brand)
	key := fmt.Sprintf("posts:%s:%s:%s", filter.Platform, filter.Brand, filter.Month)
	return readThrough(ctx, s, key, func() ([]domain.Post, error) {
		return s.repo.ListPosts(ctx, filter)
	})
}

// InvalidatePosts переводит кэш на новое поколение.
func (s *Service) InvalidatePosts(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.Incr(ctx, generationKey)
	return err
}

func (s *Service) generation(ctx context.Context) (string, bool) {
	data, err := s.cache.Get(ctx, generationKey)
	switch {
	case err == nil:
		if _, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			return string(data), true
		}
		return "", false
	case errors.Is(err, domain.ErrCacheMiss):
		return "0", true
	default:
		s.logger.Warn().Err(err).Msg("stats: кэш недоступен")
		return "", false
	}
}

func readThrough[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	gen, ok := s.generation(ctx)
	if !ok {
		return load()
	}
	full := "g" + gen + ":" + key
	var out T
	if data, err := s.cache.Get(ctx, full); err == nil {
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}

	v, err, _ := s.group.Do(full, func() (any, error) {
		v, err := load()
		if err != nil {
			return v, err
		}
		if data, err := json.Marshal(v); err == nil {
			if err := s.cache.Set(ctx, full, data, s.ttl); err != nil {
				s.logger.Warn().Err(err).Str("key", full).Msg("stats: не удалось записать кэш")
			}
		}
		return v, nil
	})
	if err != nil {
		return out, err
	}
	return v.(T), nil
}
