package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

const opTimeout = 2 * time.Second

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш; prefix отделяет ключи приложения.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, opTimeout)
}

// Once выполняет функцию, если ключ ещё не задан.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	ok, err := c.client.SetNX(ctx, c.key(key), "1", ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "cache", start, err)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(ctx, c.key(key)).Err()
		return err
	}
	return nil
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	err := c.client.Set(ctx, c.key(key), value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "cache", start, err)
	return err
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get", "cache", start, nil)
		return nil, domain.ErrCacheMiss
	}
	metrics.ObserveNetworkRequest("redis", "get", "cache", start, err)
	return data, err
}

// Del удаляет ключи.
func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.key(k))
	}
	start := time.Now()
	err := c.client.Del(ctx, full...).Err()
	metrics.ObserveNetworkRequest("redis", "del", "cache", start, err)
	return err
}

// Incr атомарно увеличивает счётчик.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	start := time.Now()
	v, err := c.client.Incr(ctx, c.key(key)).Result()
	metrics.ObserveNetworkRequest("redis", "incr", "cache", start, err)
	return v, err
}
