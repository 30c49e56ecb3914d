// Package store defines internal persistence adapter ports used by the
// higher-level pool Store. These ports isolate the concrete pool files and
// the SQLite ledger so they can be tested and evolved independently.
// Callers outside this package interact only with *Store.
package store

import (
	"context"
	"os"
	"time"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

// PoolFiles abstracts durable pool persistence (typically the filesystem).
type PoolFiles interface {
	// Create writes a new pool of size bytes drawn from gen unless one
	// already exists for id. It reports whether a pool was written.
	Create(id domain.PoolID, gen pool.Generator, size int) (bool, error)
	Exists(id domain.PoolID) (bool, error)
	Load(id domain.PoolID) (*pool.Pool, error)
	// Open returns a read handle for streaming the raw pool bytes.
	Open(id domain.PoolID) (*os.File, error)
	// List returns stored identifiers sorted ascending.
	List() ([]domain.PoolID, error)
	Delete(id domain.PoolID) error
}

// Ledger abstracts the pool history (typically backed by SQLite). It is
// informational: pool files remain the source of truth for availability.
type Ledger interface {
	RecordCreated(ctx context.Context, id domain.PoolID, size int64, at time.Time) error
	RecordDeleted(ctx context.Context, id domain.PoolID, at time.Time) error
	// Entries returns every recorded pool ordered by identifier.
	Entries(ctx context.Context) ([]Entry, error)
}

// Entry is one ledger row.
type Entry struct {
	ID        domain.PoolID
	Size      int64
	CreatedAt time.Time
	DeletedAt *time.Time // nil while the pool is live
}
