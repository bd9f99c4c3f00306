package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

// RabbitSyncQueue реализует очередь задач через AMQP.
type RabbitSyncQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	once       sync.Once
	deliveries <-chan amqp.Delivery
	consumeErr error
}

var _ domain.SyncQueue = (*RabbitSyncQueue)(nil)

// NewRabbitSyncQueue подключается к брокеру и объявляет durable-очередь.
func NewRabbitSyncQueue(url, queue string) (*RabbitSyncQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	// одна неподтверждённая задача на воркер
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	return &RabbitSyncQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует persistent-сообщение.
func (q *RabbitSyncQueue) Enqueue(ctx context.Context, job domain.SyncJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive ждёт следующую доставку. AckFunc(false) возвращает сообщение в очередь.
func (q *RabbitSyncQueue) Receive(ctx context.Context) (domain.SyncJob, domain.AckFunc, error) {
	q.once.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return domain.SyncJob{}, nil, fmt.Errorf("consume %s: %w", q.queue, q.consumeErr)
	}
	select {
	case <-ctx.Done():
		return domain.SyncJob{}, nil, ctx.Err()
	case d, ok := <-q.deliveries:
		if !ok {
			return domain.SyncJob{}, nil, errors.New("amqp: delivery channel closed")
		}
		job, err := decodeJob(d.Body)
		if err != nil {
			_ = d.Nack(false, false)
			return domain.SyncJob{}, nil, err
		}
		return job, deliveryAck(d), nil
	}
}

// Close закрывает канал и соединение.
func (q *RabbitSyncQueue) Close() error {
	return errors.Join(q.ch.Close(), q.conn.Close())
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func deliveryAck(d acknowledger) domain.AckFunc {
	return func(success bool) error {
		if success {
			return d.Ack(false)
		}
		return d.Nack(false, true)
	}
}

func decodeJob(body []byte) (domain.SyncJob, error) {
	var job domain.SyncJob
	if err := json.Unmarshal(body, &job); err != nil {
		return domain.SyncJob{}, fmt.Errorf("decode job: %w", err)
	}
	if !job.Kind.Valid() {
		return domain.SyncJob{}, fmt.Errorf("decode job: неизвестный вид %q", job.Kind)
	}
	return job, nil
}
