package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"social-tracker/internal/domain"
)

type onceRunner interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// producer ставит задачи синхронизации по расписанию.
type producer struct {
	log    zerolog.Logger
	queue  domain.SyncQueue
	once   onceRunner
	brands func() []string
	now    func() time.Time
}

const slotTTL = 10 * time.Minute

// Tick ставит задачу kind для каждого бренда. Ключ слота не даёт поставить задачи дважды
// за одну минуту, если запущено несколько планировщиков.
func (p *producer) Tick(ctx context.Context, kind domain.SyncKind) {
	now := p.clock().UTC()
	slot := fmt.Sprintf("schedule:%s:%s", kind, now.Truncate(time.Minute).Format("200601021504"))
	err := p.once.Once(ctx, slot, slotTTL, func() error {
		return p.enqueueAll(ctx, kind, now)
	})
	if err != nil {
		p.log.Error().Err(err).Str("kind", string(kind)).Msg("scheduler: не удалось поставить задачи")
	}
}

func (p *producer) enqueueAll(ctx context.Context, kind domain.SyncKind, now time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	brands := p.brands()
	if kind == domain.SyncReport {
		// отчёт по всем брендам сразу
		brands = append(brands, "")
	}
	for _, brand := range brands {
		job := domain.SyncJob{
			ID:          uuid.NewString(),
			Kind:        kind,
			Brand:       brand,
			RequestedAt: now,
			Cause:       domain.SyncCauseScheduled,
		}
		if kind == domain.SyncReport {
			job.Month = domain.PreviousMonth(now)
			job.Platform = domain.ReportPlatformCross
		}
		g.Go(func() error {
			if err := p.queue.Enqueue(gctx, job); err != nil {
				return fmt.Errorf("%s/%s: %w", kind, job.Brand, err)
			}
			p.log.Debug().Str("job_id", job.ID).Str("kind", string(kind)).Str("brand", job.Brand).Msg("scheduler: задача поставлена")
			return nil
		})
	}
	return g.Wait()
}

func (p *producer) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}
