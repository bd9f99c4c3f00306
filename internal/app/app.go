// Package app собирает общие зависимости бинарников из конфигурации.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-tracker/internal/adapters/csvsource"
	"social-tracker/internal/adapters/repo"
	"social-tracker/internal/adapters/reporter"
	"social-tracker/internal/adapters/telegram"
	"social-tracker/internal/brands"
	"social-tracker/internal/domain"
	"social-tracker/internal/infra/cache"
	"social-tracker/internal/infra/config"
	"social-tracker/internal/infra/openai"
	"social-tracker/internal/infra/queue"
	"social-tracker/internal/usecase/followers"
	"social-tracker/internal/usecase/ingest"
	"social-tracker/internal/usecase/report"
	"social-tracker/internal/usecase/stats"
)

// OnceCache умеет выполнить действие один раз на ключ.
type OnceCache interface {
	domain.Cache
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// App держит хранилище, кэш и сервисы, общие для всех бинарников.
type App struct {
	Config    config.AppConfig
	Logger    zerolog.Logger
	Store     repo.Store
	Cache     OnceCache
	Brands    *brands.Catalog
	Stats     *stats.Service
	Followers *followers.Ledger
	Ingest    *ingest.Service
	Notifier  domain.Notifier

	redis *redis.Client
}

// New подключает хранилище и кэш и собирает сервисы.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	catalog := brands.Default()
	if cfg.BrandsFile != "" {
		loaded, err := brands.Load(cfg.BrandsFile)
		if err != nil {
			return nil, fmt.Errorf("каталог брендов: %w", err)
		}
		catalog = loaded
	}

	store, err := repo.Open(ctx, repo.Options{
		Driver:     cfg.Store.Driver,
		PGDSN:      cfg.Store.PGDSN,
		SQLitePath: cfg.Store.SQLitePath,
		Migrate:    cfg.Store.Driver == string(repo.DialectSQLite),
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Store: store, Brands: catalog}
	if cfg.Cache.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Cache.RedisAddr, err)
		}
		a.Cache = cache.NewRedis(a.redis, "social-tracker:")
	} else {
		logger.Warn().Msg("app: REDIS_ADDR не задан, используется кэш в памяти")
		a.Cache = cache.NewMemory()
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.NotifyChatID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("app: уведомления в Telegram отключены")
		notifier = telegram.Nop{}
	}
	a.Notifier = notifier

	a.Stats = stats.NewService(store, a.Cache, cfg.Cache.TTL, logger)
	a.Followers = followers.NewLedger(store, a.Cache, cfg.Cache.TTL, logger)
	a.Ingest = ingest.NewService(ingest.Deps{
		Posts:     store,
		Uploads:   store,
		Followers: a.Followers,
		Brands:    catalog,
		Reader:    csvsource.NewReader(),
		Cache:     a.Stats,
		Metrics:   store,
		Notifier:  notifier,
	}, logger)
	return a, nil
}

// Queue открывает очередь задач по QUEUE_DRIVER. Возвращённую функцию нужно вызвать при остановке.
func (a *App) Queue() (domain.SyncQueue, func() error, error) {
	switch a.Config.Queue.Driver {
	case "rabbitmq":
		q, err := queue.NewRabbitSyncQueue(a.Config.Queue.RabbitURL, a.Config.Queue.Key)
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	case "redis", "":
		if a.redis == nil {
			return nil, nil, errors.New("очередь redis требует REDIS_ADDR")
		}
		return queue.NewRedisSyncQueue(a.redis, a.Config.Queue.Key), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный QUEUE_DRIVER %q", a.Config.Queue.Driver)
	}
}

// RedisQueue возвращает redis-очередь, если она используется.
func (a *App) RedisQueue() (*queue.RedisSyncQueue, bool) {
	if a.redis == nil || (a.Config.Queue.Driver != "redis" && a.Config.Queue.Driver != "") {
		return nil, false
	}
	return queue.NewRedisSyncQueue(a.redis, a.Config.Queue.Key), true
}

// Account собирает идентификаторы бренда с секретами из окружения.
func (a *App) Account(brand string) (domain.BrandAccount, bool) {
	return a.Brands.Account(brand, os.Getenv)
}

// Close освобождает хранилище и соединение с Redis.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// Reports собирает сервис отчётов. Без OPENAI_API_KEY используется офлайн-генератор.
func (a *App) Reports() *report.Service {
	var gen domain.ReportGenerator = reporter.NewSimple()
	if a.Config.OpenAI.APIKey != "" {
		client := openai.NewClient(a.Config.OpenAI.APIKey, a.Config.OpenAI.BaseURL, a.Config.OpenAI.Timeout)
		gen = reporter.NewOpenAI(client, a.Config.OpenAI.Model, a.Config.OpenAI.Timeout)
	}
	return report.NewService(a.Stats, a.Followers, a.Store, gen, a.Store, a.Logger)
}
