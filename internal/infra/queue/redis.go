package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

// RedisSyncQueue реализует надёжную очередь на Redis lists:
// взятая задача лежит в списке обработки до подтверждения.
type RedisSyncQueue struct {
	client     *redis.Client
	key        string
	processing string
	poll       time.Duration
}

var _ domain.SyncQueue = (*RedisSyncQueue)(nil)

// NewRedisSyncQueue создаёт очередь по указанному ключу.
func NewRedisSyncQueue(client *redis.Client, key string) *RedisSyncQueue {
	return &RedisSyncQueue{client: client, key: key, processing: key + ":processing", poll: time.Second}
}

// Enqueue публикует задачу в очередь.
func (q *RedisSyncQueue) Enqueue(ctx context.Context, job domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе забирает задачу. AckFunc(true) удаляет её из списка обработки,
// AckFunc(false) возвращает в хвост очереди.
func (q *RedisSyncQueue) Receive(ctx context.Context) (domain.SyncJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.SyncJob{}, nil, err
		}
		payload, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", q.poll).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return domain.SyncJob{}, nil, ctx.Err()
			}
			return domain.SyncJob{}, nil, fmt.Errorf("pop job: %w", err)
		}
		var job domain.SyncJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			// битое сообщение не возвращаем, иначе оно зациклится
			_ = q.client.LRem(context.Background(), q.processing, 1, payload).Err()
			return domain.SyncJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, q.ack(payload), nil
	}
}

func (q *RedisSyncQueue) ack(payload string) domain.AckFunc {
	return func(success bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, q.processing, 1, payload)
		if !success {
			pipe.LPush(ctx, q.key, payload)
		}
		_, err := pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("ack job: %w", err)
		}
		return nil
	}
}

// Requeue возвращает в очередь задачи, застрявшие в обработке после падения воркера.
func (q *RedisSyncQueue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("requeue: %w", err)
		}
		moved++
	}
}
