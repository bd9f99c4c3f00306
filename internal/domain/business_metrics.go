package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	Platform   Platform
	Brand      string
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventCSVImported фиксирует импорт CSV-файла.
	BusinessMetricEventCSVImported = "csv_imported"
	// BusinessMetricEventPostsSynced фиксирует загрузку постов из API.
	BusinessMetricEventPostsSynced = "posts_synced"
	// BusinessMetricEventFollowersSynced фиксирует обновление подписчиков.
	BusinessMetricEventFollowersSynced = "followers_synced"
	// BusinessMetricEventReportGenerated фиксирует генерацию AI-отчёта.
	BusinessMetricEventReportGenerated = "report_generated"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
