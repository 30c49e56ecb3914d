package httpx

import (
	"log/slog"
	"mime"
	"net/http"

	"github.com/haukened/padkey/internal/store/filesystem"
)

// handleConfig implements GET /config.
func (h *Handler) handleConfig(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Service.Settings())
}

// handleDownload implements GET /download/{date}. Single mode ignores date.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	f, id, err := h.Service.OpenPool(r.Context(), r.PathValue("date"))
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	cid, _ := GetCorrelationID(r.Context())
	slog.Info("pool download", "domain", "http", "action", "download", "cid", cid, "id", id, "size", fi.Size())
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filesystem.FileName(id)}))
	http.ServeContent(w, r, "", fi.ModTime(), f)
}

// handlePools implements GET /api/pools.
func (h *Handler) handlePools(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Pools(r.Context())
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
