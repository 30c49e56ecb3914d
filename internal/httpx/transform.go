package httpx

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/haukened/padkey/internal/keyfile"
)

// keyBytesPerPosition bounds the JSON size of one position ("1073741823,").
const keyBytesPerPosition = 12

// readBody reads the request body, enforcing limit when positive.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	defer body.Close()
	return io.ReadAll(body)
}

// handleEncode implements POST /api/encode/{date}?ext=<extension>.
func (h *Handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	ext := strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("ext")), ".")
	data, err := readBody(w, r, h.MaxBody)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	key, err := h.Service.Encode(r.Context(), date, ext, data)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	b, err := keyfile.Marshal(key)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	cid, _ := GetCorrelationID(r.Context())
	slog.Debug("encoded", "domain", "http", "action", "encode", "cid", cid, "date", date, "bytes", len(data))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// handleDecode implements POST /api/decode. The body is a key, plain or zstd
// compressed. The same limit caps the wire size and the decompressed size.
func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	var limit int64
	if h.MaxBody > 0 {
		limit = h.MaxBody*keyBytesPerPosition + 4096
	}
	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	defer body.Close()
	key, err := keyfile.ReadLimit(body, limit)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	out, err := h.Service.Decode(r.Context(), key)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	cid, _ := GetCorrelationID(r.Context())
	slog.Debug("decoded", "domain", "http", "action", "decode", "cid", cid, "date", key.Date, "bytes", len(out))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": keyfile.ReconstructedName(key.FileExtension)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
