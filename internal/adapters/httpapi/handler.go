package httpapi

import (
	"context"
	"io"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"social-tracker/internal/domain"
	"social-tracker/internal/usecase/ingest"
)

// PostQueries отдаёт листинги и агрегаты.
type PostQueries interface {
	Posts(ctx context.Context, platform domain.Platform, brand string) ([]domain.Post, error)
	MonthlyStats(ctx context.Context, platform domain.Platform) ([]domain.MonthlyStat, error)
}

// Importer принимает CSV и правки постов.
type Importer interface {
	ImportCSV(ctx context.Context, filename string, r io.Reader, defaultBrand string) (ingest.ImportResult, error)
	UpdatePostLabels(ctx context.Context, id int64, theme, campaign string) error
	ListUploads(ctx context.Context) ([]domain.UploadRecord, error)
}

// FollowerLedger читает и пишет снимки подписчиков.
type FollowerLedger interface {
	Record(ctx context.Context, platform domain.Platform, brand string, followers int64, month string) error
	Lookup(ctx context.Context, platform domain.Platform, brand, month string) (int64, bool, error)
	LookupPreviousMonth(ctx context.Context, platform domain.Platform, brand string) (domain.FollowerSnapshot, bool, error)
	History(ctx context.Context, platform domain.Platform, brand string) ([]domain.FollowerSnapshot, error)
}

// ReportReader отдаёт сохранённые отчёты.
type ReportReader interface {
	Get(ctx context.Context, month, platform, brand string) (domain.Report, error)
}

// BrandSet проверяет, известен ли бренд.
type BrandSet interface {
	Has(name string) bool
}

// Deps собирает зависимости обработчиков.
type Deps struct {
	Posts     PostQueries
	Importer  Importer
	Followers FollowerLedger
	Remarks   domain.RemarkRepo
	Reports   ReportReader
	Queue     domain.SyncQueue
	Brands    BrandSet
}

// Handler обслуживает JSON API.
type Handler struct {
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

// NewHandler создаёт обработчики API.
func NewHandler(deps Deps, logger zerolog.Logger) *Handler {
	return &Handler{
		deps:   deps,
		logger: logger.With().Str("component", "httpapi").Logger(),
		now:    time.Now,
	}
}

// Register навешивает маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/posts", h.listPosts)
		r.Patch("/posts/{id}/labels", h.updateLabels)
		r.Get("/stats/monthly", h.monthlyStats)

		r.Route("/followers/{platform}/{brand}", func(r chi.Router) {
			r.Get("/", h.getFollowers)
			r.Put("/", h.putFollowers)
			r.Get("/previous", h.previousFollowers)
			r.Get("/history", h.followerHistory)
		})

		r.Get("/uploads", h.listUploads)
		r.Post("/uploads", h.upload)

		r.Get("/remarks", h.listRemarks)
		r.Post("/remarks", h.addRemark)
		r.Patch("/remarks/{id}", h.updateRemark)

		r.Get("/reports/{month}", h.getReport)
		r.Post("/sync", h.enqueueSync)
	})
}
