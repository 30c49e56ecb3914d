// Package httpx contains the HTTP delivery layer (net/http handlers) for the
// padkey service. It exposes pool downloads, server-side encode and decode,
// the retention settings clients use for validity guidance, and probes.
// Handlers are split across files (pools.go, transform.go, health.go, errors.go).
package httpx

import (
	"context"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/haukened/padkey/internal/app"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/keyfile"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	Settings() app.Settings
	CurrentID() domain.PoolID
	OpenPool(ctx context.Context, date string) (*os.File, domain.PoolID, error)
	Encode(ctx context.Context, date, ext string, data []byte) (keyfile.Key, error)
	Decode(ctx context.Context, k keyfile.Key) ([]byte, error)
	Pools(ctx context.Context) (app.PoolsView, error)
}

// Handler wires HTTP endpoints to the application service.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	MaxBody   int64                       // maximum upload size; 0 disables the check
	Readiness func(context.Context) error // optional readiness probe
	IndexTmpl IndexRenderer               // optional renderer for index page
	Assets    http.FileSystem             // static assets filesystem (optional)
	Metrics   http.Handler                // optional /metrics handler
	Limiter   *rate.Limiter               // optional limiter for pool downloads
	Now       func() time.Time
}

// New returns a configured Handler.
// svc: application service port implementation.
// maxBody: maximum allowed upload size (0 disables the check).
// readiness: optional probe function for /readyz (nil => always ready).
func New(svc ServicePort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, MaxBody: maxBody, Readiness: readiness, Now: time.Now}
}

// Router constructs and returns an http.Handler with all routes mounted and
// the correlation and security headers middleware applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /config", h.handleConfig)
	mux.HandleFunc("GET /download/{date}", h.limit(h.handleDownload))
	mux.HandleFunc("POST /api/encode/{date}", h.handleEncode)
	mux.HandleFunc("POST /api/decode", h.handleDecode)
	mux.HandleFunc("GET /api/pools", h.handlePools)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /readyz", h.handleReady)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	if h.Assets != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", h.staticHandler()))
	}
	return CorrelationIDMiddleware(h.secureHeaders(mux))
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// secureHeaders middleware adds standard security & cache control headers.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'self'; style-src 'self'; img-src 'self' data:; connect-src 'self'; font-src 'self'; frame-ancestors 'none'; base-uri 'none'; form-action 'self'")
		next.ServeHTTP(w, r)
	})
}
