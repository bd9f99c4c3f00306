package httpapi

import (
	"net/http"
	"path/filepath"
	"strings"
)

const maxUploadBytes = 32 << 20

func (h *Handler) listUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.deps.Importer.ListUploads(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploads)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, r, invalid("multipart: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, invalid("поле file: %v", err))
		return
	}
	defer file.Close()

	brand := strings.TrimSpace(r.FormValue("brand"))
	if brand != "" && !h.deps.Brands.Has(brand) {
		h.writeError(w, r, invalid("неизвестный бренд %q", brand))
		return
	}
	res, err := h.deps.Importer.ImportCSV(r.Context(), filepath.Base(header.Filename), file, brand)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info().Str("file", res.Filename).Str("platform", string(res.Platform)).Int("inserted", res.Result.Inserted).Msg("httpapi: CSV импортирован")
	writeJSON(w, http.StatusOK, res)
}
