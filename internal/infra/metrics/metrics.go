package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	PostsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_ingested_total",
		Help: "Посты, обработанные при загрузке, по исходу",
	}, []string{"platform", "brand", "outcome"})
	IngestBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_batch_seconds",
		Help:    "Время загрузки батча постов",
		Buckets: prometheus.DefBuckets,
	})
	SyncErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_errors_total",
		Help: "Ошибки задач синхронизации",
	}, []string{"kind"})
	FollowerSnapshotsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "follower_snapshots_recorded_total",
		Help: "Записанные снимки подписчиков",
	}, []string{"platform"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Время исходящих запросов к API, БД и брокерам",
		Buckets: prometheus.ExponentialBuckets(0.01, 2.5, 10),
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Исходящие запросы по исходу",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Время ответа модели при генерации отчёта",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Токены, потраченные на отчёты",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PostsIngested,
		IngestBatchSeconds,
		SyncErrors,
		FollowerSnapshotsRecorded,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer поднимает отдельный листенер /metrics и гасит его вместе с ctx.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(closeCtx); err != nil {
			logger.Warn().Err(err).Msg("остановка /metrics")
		}
	})

	go func() {
		defer stop()
		logger.Info().Str("addr", addr).Msg("/metrics слушает")
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		logger.Error().Err(err).Msg("/metrics упал")
	}()
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveNetworkRequest учитывает один исходящий вызов: гистограмма и счётчик с меткой исхода.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	labels := prometheus.Labels{
		"component": orUnknown(component),
		"operation": orUnknown(operation),
		"target":    orUnknown(target),
		"status":    outcome,
	}
	NetworkRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.With(labels).Inc()
}

// ObserveLLMGeneration пишет время ответа модели и расход токенов.
// Если total не пришёл, он считается как prompt + completion.
func ObserveLLMGeneration(model string, took time.Duration, promptTokens, completionTokens, totalTokens int) {
	model = orUnknown(model)
	LLMGenerationDuration.WithLabelValues(model).Observe(took.Seconds())
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	for kind, n := range map[string]int{"prompt": promptTokens, "completion": completionTokens, "total": totalTokens} {
		if n > 0 {
			LLMTokensTotal.WithLabelValues(model, kind).Add(float64(n))
		}
	}
}

// ObserveBatch записывает исходы загрузки батча.
func ObserveBatch(platform, brand string, inserted, merged, skipped, failed int, start time.Time) {
	brand = orUnknown(brand)
	IngestBatchSeconds.Observe(time.Since(start).Seconds())
	PostsIngested.WithLabelValues(platform, brand, "inserted").Add(float64(inserted))
	PostsIngested.WithLabelValues(platform, brand, "merged").Add(float64(merged))
	PostsIngested.WithLabelValues(platform, brand, "skipped").Add(float64(skipped))
	PostsIngested.WithLabelValues(platform, brand, "failed").Add(float64(failed))
}

// IncSyncError увеличивает счётчик ошибок синхронизации.
func IncSyncError(kind string) {
	SyncErrors.WithLabelValues(kind).Inc()
}

// IncFollowerSnapshot увеличивает счётчик записанных снимков.
func IncFollowerSnapshot(platform string) {
	FollowerSnapshotsRecorded.WithLabelValues(platform).Inc()
}
