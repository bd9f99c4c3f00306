package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
	"social-tracker/internal/infra/metrics"
)

type accountSource interface {
	Account(brand string) (domain.BrandAccount, bool)
}

type postSyncer interface {
	SyncRecent(ctx context.Context, acc domain.BrandAccount) (domain.BatchResult, error)
	SyncHistory(ctx context.Context, acc domain.BrandAccount, sinceYear int) (domain.BatchResult, error)
	SyncTikTok(ctx context.Context, acc domain.BrandAccount, maxPages int) (domain.BatchResult, error)
}

type followerSyncer interface {
	SyncBrand(ctx context.Context, acc domain.BrandAccount) error
}

type reportGenerator interface {
	Generate(ctx context.Context, month, platform, brand string) (domain.Report, error)
}

type jobWorker struct {
	log              zerolog.Logger
	queue            domain.SyncQueue
	statuses         domain.SyncJobStatusRepo
	accounts         accountSource
	posts            postSyncer
	followers        followerSyncer
	reports          reportGenerator
	historySinceYear int
	now              func() time.Time
	retryDelay       time.Duration
}

const (
	maxDeliveryAttempts = 5
	tiktokMaxPages      = 20
)

type jobOutcome int

const (
	jobOutcomeCompleted jobOutcome = iota
	jobOutcomeRetry
)

func (w *jobWorker) Run(ctx context.Context) {
	if w.retryDelay == 0 {
		w.retryDelay = time.Second
	}
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("collector: ошибка чтения очереди")
			w.sleep(ctx)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("kind", string(job.Kind)).
			Str("brand", job.Brand).
			Str("cause", string(job.Cause)).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("collector: получена задача без идентификатора, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу без идентификатора")
			}
			continue
		}

		done, attempt, err := w.statuses.EnsureSyncJob(ctx, job.ID)
		if err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось зарегистрировать задачу")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("collector: не удалось вернуть задачу в очередь")
			}
			w.sleep(ctx)
			continue
		}
		jobLog = jobLog.With().Int("attempt", attempt).Logger()

		if done {
			jobLog.Info().Msg("collector: задача уже выполнена, подтверждаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить выполненную задачу")
			}
			continue
		}

		outcome := w.handleJob(ctx, job, jobLog)

		if outcome == jobOutcomeRetry && attempt < maxDeliveryAttempts {
			jobLog.Warn().Msg("collector: задача завершилась ошибкой, повторим позже")
			if err := ack(false); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось вернуть задачу после ошибки")
			}
			w.sleep(ctx)
			continue
		}
		if outcome == jobOutcomeRetry {
			jobLog.Error().Msg("collector: достигнут предел попыток, помечаем задачу как завершённую")
		}

		if err := w.statuses.MarkSyncJobDone(ctx, job.ID); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось пометить задачу выполненной")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("collector: не удалось вернуть задачу после ошибки статуса")
			}
			w.sleep(ctx)
			continue
		}
		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу")
		}
	}
}

func (w *jobWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}

func (w *jobWorker) handleJob(ctx context.Context, job domain.SyncJob, jobLog zerolog.Logger) jobOutcome {
	err := w.execute(ctx, job, jobLog)
	if err == nil {
		return jobOutcomeCompleted
	}
	metrics.IncSyncError(string(job.Kind))
	if permanent(err) {
		jobLog.Warn().Err(err).Msg("collector: задача не может быть выполнена")
		return jobOutcomeCompleted
	}
	jobLog.Error().Err(err).Msg("collector: ошибка выполнения задачи")
	return jobOutcomeRetry
}

// permanent сообщает, что повтор задачи ничего не изменит.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrAccountMissing) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrInvalidPlatform) ||
		errors.Is(err, domain.ErrInvalidMonth)
}

func (w *jobWorker) execute(ctx context.Context, job domain.SyncJob, jobLog zerolog.Logger) error {
	if job.Kind == domain.SyncReport {
		month := job.Month
		if month == "" {
			month = domain.PreviousMonth(w.clock())
		}
		report, err := w.reports.Generate(ctx, month, job.Platform, job.Brand)
		if err != nil {
			return err
		}
		jobLog.Info().Str("month", report.Month).Str("platform", report.Platform).Msg("collector: отчёт готов")
		return nil
	}

	acc, ok := w.accounts.Account(job.Brand)
	if !ok {
		return fmt.Errorf("%w: неизвестный бренд %q", domain.ErrInvalidInput, job.Brand)
	}
	var (
		res domain.BatchResult
		err error
	)
	switch job.Kind {
	case domain.SyncPosts:
		res, err = w.posts.SyncRecent(ctx, acc)
	case domain.SyncHistory:
		since := job.SinceYear
		if since == 0 {
			since = w.historySinceYear
		}
		res, err = w.posts.SyncHistory(ctx, acc, since)
	case domain.SyncTikTok:
		res, err = w.posts.SyncTikTok(ctx, acc, tiktokMaxPages)
	case domain.SyncFollowers:
		return w.followers.SyncBrand(ctx, acc)
	default:
		return fmt.Errorf("%w: неизвестный вид задачи %q", domain.ErrInvalidInput, job.Kind)
	}
	jobLog.Info().Str("result", res.String()).Msg("collector: синхронизация завершена")
	return err
}

func (w *jobWorker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now()
}
