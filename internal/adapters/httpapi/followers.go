package httpapi

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"social-tracker/internal/domain"
)

type followersResponse struct {
	Platform  domain.Platform `json:"platform"`
	Brand     string          `json:"brand"`
	Month     string          `json:"month"`
	Followers *int64          `json:"followers"`
}

type followersRequest struct {
	Followers *int64 `json:"followers"`
	Month     string `json:"month"`
}

func (h *Handler) pair(r *http.Request) (domain.Platform, string, error) {
	platform, err := domain.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		return "", "", err
	}
	brand := strings.TrimSpace(chi.URLParam(r, "brand"))
	if brand == "" {
		return "", "", invalid("пустой бренд")
	}
	return platform, brand, nil
}

func (h *Handler) getFollowers(w http.ResponseWriter, r *http.Request) {
	platform, brand, err := h.pair(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	month := r.URL.Query().Get("month")
	if month == "" {
		month = domain.CurrentMonth(h.now())
	} else if err := domain.ValidateMonth(month); err != nil {
		h.writeError(w, r, err)
		return
	}
	n, ok, err := h.deps.Followers.Lookup(r.Context(), platform, brand, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := followersResponse{Platform: platform, Brand: brand, Month: month}
	if ok {
		resp.Followers = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) previousFollowers(w http.ResponseWriter, r *http.Request) {
	platform, brand, err := h.pair(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, ok, err := h.deps.Followers.LookupPreviousMonth(r.Context(), platform, brand)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := followersResponse{Platform: platform, Brand: brand}
	if ok {
		resp.Month = snap.Month
		resp.Followers = &snap.Followers
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) followerHistory(w http.ResponseWriter, r *http.Request) {
	platform, brand, err := h.pair(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.deps.Followers.History(r.Context(), platform, brand)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) putFollowers(w http.ResponseWriter, r *http.Request) {
	platform, brand, err := h.pair(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req followersRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Followers == nil {
		h.writeError(w, r, invalid("не указано поле followers"))
		return
	}
	if err := h.deps.Followers.Record(r.Context(), platform, brand, *req.Followers, req.Month); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
