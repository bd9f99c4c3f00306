package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
)

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.deps.Reports.Get(r.Context(), chi.URLParam(r, "month"), q.Get("platform"), q.Get("brand"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
