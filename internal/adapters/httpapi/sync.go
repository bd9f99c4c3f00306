package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"social-tracker/internal/domain"
)

type syncRequest struct {
	Kind      domain.SyncKind `json:"kind"`
	Brand     string          `json:"brand"`
	Platform  string          `json:"platform"`
	Month     string          `json:"month"`
	SinceYear int             `json:"since_year"`
}

// job проверяет запрос и собирает задачу.
func (h *Handler) job(req syncRequest) (domain.SyncJob, error) {
	if !req.Kind.Valid() {
		return domain.SyncJob{}, invalid("неизвестный вид синхронизации %q", req.Kind)
	}
	brand := strings.TrimSpace(req.Brand)
	// отчёт допускается по всем брендам
	if brand == "" && req.Kind != domain.SyncReport {
		return domain.SyncJob{}, invalid("не указан бренд")
	}
	if brand != "" && !h.deps.Brands.Has(brand) {
		return domain.SyncJob{}, invalid("неизвестный бренд %q", brand)
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if platform != "" && platform != domain.ReportPlatformCross {
		if _, err := domain.ParsePlatform(platform); err != nil {
			return domain.SyncJob{}, err
		}
	}
	if req.Month != "" {
		if err := domain.ValidateMonth(req.Month); err != nil {
			return domain.SyncJob{}, err
		}
	}
	if req.SinceYear < 0 {
		return domain.SyncJob{}, invalid("since_year должен быть положительным")
	}
	return domain.SyncJob{
		ID:          uuid.NewString(),
		Kind:        req.Kind,
		Brand:       brand,
		Platform:    platform,
		Month:       req.Month,
		SinceYear:   req.SinceYear,
		RequestedAt: h.now().UTC(),
		Cause:       domain.SyncCauseManual,
	}, nil
}

func (h *Handler) enqueueSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	job, err := h.job(req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Queue.Enqueue(r.Context(), job); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Str("brand", job.Brand).Msg("httpapi: задача поставлена")
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}
