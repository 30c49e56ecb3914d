package httpx

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewLimiter returns a token bucket allowing rps requests per second with the
// given burst, or nil (unlimited) when rps is not positive.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// limit rejects requests with 429 while the download limiter is exhausted.
func (h *Handler) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Limiter != nil && !h.Limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			h.writeError(r.Context(), w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}
