package metrics

import (
	"context"
	"crypto/subtle"
	"net/http"

	json "github.com/goccy/go-json"
)

// SnapshotProvider abstracts Manager for testing.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Handler returns an http.HandlerFunc that writes a JSON metrics snapshot.
// If token is non-empty, requests must include Authorization: Bearer <token>.
func Handler(provider SnapshotProvider, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			hdr := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(hdr) <= len(prefix) || hdr[:len(prefix)] != prefix ||
				subtle.ConstantTimeCompare([]byte(hdr[len(prefix):]), []byte(token)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		snap, err := provider.Snapshot(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}
