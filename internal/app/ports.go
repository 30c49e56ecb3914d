// Package app defines the application layer "ports" (interfaces) and simple
// data contracts that the core use-cases of padkey depend upon. It follows a
// hexagonal (ports & adapters) design: this package declares what the core
// needs, while adapter packages (filesystem + SQLite storage, HTTP layer,
// scheduler) provide concrete implementations. No SQL or network concerns
// belong here.
package app

import (
	"context"
	"os"
	"time"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

// Clock abstracts time so that pool rotation and resolution can be tested
// deterministically.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// PoolStore is the storage port for pools. Implementations must never
// overwrite an existing pool and must never expose a partially written one.
type PoolStore interface {
	// Create writes a new pool for id unless one exists. It reports whether
	// a pool was written; a second call for the same id is a no-op.
	Create(ctx context.Context, id domain.PoolID) (bool, error)
	Exists(ctx context.Context, id domain.PoolID) (bool, error)
	// Load returns the whole pool or domain.ErrNotFound.
	Load(ctx context.Context, id domain.PoolID) (*pool.Pool, error)
	// Open returns a read handle on the raw pool bytes or domain.ErrNotFound.
	Open(ctx context.Context, id domain.PoolID) (*os.File, error)
	// List returns stored identifiers sorted ascending.
	List(ctx context.Context) ([]domain.PoolID, error)
	Delete(ctx context.Context, id domain.PoolID) error
	// History returns creation and eviction records for every known pool.
	History(ctx context.Context) ([]PoolRecord, error)
}

// PoolRecord describes a pool known to the store.
type PoolRecord struct {
	ID        domain.PoolID `json:"id"`
	Size      int64         `json:"size"`
	CreatedAt time.Time     `json:"created_at"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
	Live      bool          `json:"live"`
}

// Metrics receives counters and observations. *metrics.Manager satisfies it.
type Metrics interface {
	Inc(name string, delta int64)
	Observe(name string, v int64)
}

type nopMetrics struct{}

func (nopMetrics) Inc(string, int64)     {}
func (nopMetrics) Observe(string, int64) {}
