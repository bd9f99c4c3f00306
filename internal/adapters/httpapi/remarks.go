package httpapi

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"social-tracker/internal/domain"
)

type remarkRequest struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

type remarkStatusRequest struct {
	Status domain.RemarkStatus `json:"status"`
}

func (h *Handler) listRemarks(w http.ResponseWriter, r *http.Request) {
	remarks, err := h.deps.Remarks.ListRemarks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if remarks == nil {
		remarks = []domain.Remark{}
	}
	writeJSON(w, http.StatusOK, remarks)
}

func (h *Handler) addRemark(w http.ResponseWriter, r *http.Request) {
	var req remarkRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		h.writeError(w, r, invalid("пустое замечание"))
		return
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = "anonymous"
	}
	remark, err := h.deps.Remarks.AddRemark(r.Context(), author, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, remark)
}

func (h *Handler) updateRemark(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req remarkStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.deps.Remarks.UpdateRemarkStatus(r.Context(), id, req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
