package domain

import (
	"context"
	"time"
)

// SyncJobCause описывает источник задачи синхронизации.
type SyncJobCause string

const (
	// SyncCauseManual: задачу поставили через API.
	SyncCauseManual SyncJobCause = "manual"
	// SyncCauseScheduled: задачу поставил планировщик.
	SyncCauseScheduled SyncJobCause = "scheduled"
)

// SyncKind определяет, что синхронизировать.
type SyncKind string

const (
	SyncPosts     SyncKind = "posts"
	SyncHistory   SyncKind = "history"
	SyncFollowers SyncKind = "followers"
	SyncTikTok    SyncKind = "tiktok"
	SyncReport    SyncKind = "report"
)

// Valid сообщает, известен ли вид задачи.
func (k SyncKind) Valid() bool {
	switch k {
	case SyncPosts, SyncHistory, SyncFollowers, SyncTikTok, SyncReport:
		return true
	}
	return false
}

// SyncJob содержит задачу синхронизации для collector.
type SyncJob struct {
	ID          string       `json:"job_id,omitempty"`
	Kind        SyncKind     `json:"kind"`
	Brand       string       `json:"brand"`
	Platform    string       `json:"platform,omitempty"`
	Month       string       `json:"month,omitempty"`
	SinceYear   int          `json:"since_year,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	Cause       SyncJobCause `json:"cause"`
}

// SyncQueue описывает очередь задач синхронизации.
type SyncQueue interface {
	Enqueue(ctx context.Context, job SyncJob) error
	Receive(ctx context.Context) (SyncJob, AckFunc, error)
}

// AckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type AckFunc func(success bool) error

// SyncJobStatusRepo отслеживает попытки выполнения задач.
type SyncJobStatusRepo interface {
	// EnsureSyncJob регистрирует попытку и возвращает признак завершённости и номер попытки.
	EnsureSyncJob(ctx context.Context, jobID string) (done bool, attempt int, err error)
	// MarkSyncJobDone помечает задачу как окончательно выполненную.
	MarkSyncJobDone(ctx context.Context, jobID string) error
}
