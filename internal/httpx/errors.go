package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/haukened/padkey/internal/app"
	"github.com/haukened/padkey/internal/codec"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/keyfile"
)

// errorBody is the JSON error envelope. Codec failures add the offending
// byte or position and its index in the input.
type errorBody struct {
	Error    string `json:"error"`
	Byte     *int   `json:"byte,omitempty"`
	Position *int   `json:"position,omitempty"`
	Index    *int   `json:"index,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, errorBody{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "domain", "http", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/codec/service errors to HTTP responses.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	var (
		encErr  *codec.EncodeError
		decErr  *codec.DecodeError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &encErr):
		slog.Warn("service error", "domain", "http", "cid", cid, "code", "encode_failed", "index", encErr.Index)
		b, i := int(encErr.Byte), encErr.Index
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "byte not present in pool", Byte: &b, Index: &i})
	case errors.As(err, &decErr):
		slog.Warn("service error", "domain", "http", "cid", cid, "code", "decode_failed", "index", decErr.Index)
		p, i := decErr.Position, decErr.Index
		h.writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "position out of range", Position: &p, Index: &i})
	case errors.As(err, &sizeErr), errors.Is(err, app.ErrTooLarge), errors.Is(err, keyfile.ErrTooLarge):
		slog.Warn("service error", "domain", "http", "cid", cid, "code", "too_large")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "input too large")
	case errors.Is(err, domain.ErrInvalidDate):
		slog.Warn("service error", "domain", "http", "cid", cid, "code", "invalid_date")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid date")
	case errors.Is(err, domain.ErrInvalidKey):
		slog.Warn("service error", "domain", "http", "cid", cid, "code", "invalid_key")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid key")
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("service error", "domain", "http", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "pool expired or unavailable")
	default:
		// Internal: do not echo raw error text, it may hold filesystem paths.
		slog.Error("unhandled service error", "domain", "http", "cid", cid, "code", "unhandled", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
