package httpapi

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
)

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	platform, err := optionalPlatform(r.URL.Query().Get("platform"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	posts, err := h.deps.Posts.Posts(r.Context(), platform, strings.TrimSpace(r.URL.Query().Get("brand")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) monthlyStats(w http.ResponseWriter, r *http.Request) {
	platform, err := optionalPlatform(r.URL.Query().Get("platform"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.deps.Posts.MonthlyStats(r.Context(), platform)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type labelsRequest struct {
	Theme    string `json:"theme"`
	Campaign string `json:"campaign"`
}

func (h *Handler) updateLabels(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req labelsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Importer.UpdatePostLabels(r.Context(), id, req.Theme, req.Campaign); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
