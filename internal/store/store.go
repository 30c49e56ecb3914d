// Package store provides the concrete implementation of the application
// PoolStore port by composing lower-layer persistence ports (PoolFiles and
// Ledger). External packages should construct the store via New and
// interact only through the app.PoolStore interface.
package store

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/haukened/padkey/internal/app"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

// Store composes PoolFiles and a Ledger to satisfy app.PoolStore. Pool
// files decide availability; the ledger is written best-effort.
type Store struct {
	files  PoolFiles
	ledger Ledger
	clock  app.Clock
	gen    pool.Generator
	size   int
	log    *slog.Logger
}

// New returns a Store implementation of app.PoolStore. New pools hold size
// bytes drawn from gen. ledger may be nil.
func New(files PoolFiles, ledger Ledger, clock app.Clock, gen pool.Generator, size int) *Store {
	return &Store{files: files, ledger: ledger, clock: clock, gen: gen, size: size, log: slog.Default().With("domain", "store")}
}

var _ app.PoolStore = (*Store)(nil)

func (s *Store) ready() error {
	if s == nil || s.files == nil || s.clock == nil || s.gen == nil {
		return errors.New("store not properly initialized")
	}
	return nil
}

// Create writes the pool for id if it does not exist and records it in the ledger.
func (s *Store) Create(ctx context.Context, id domain.PoolID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	created, err := s.files.Create(id, s.gen, s.size)
	if err != nil || !created {
		return created, err
	}
	if s.ledger != nil {
		if lErr := s.ledger.RecordCreated(ctx, id, int64(s.size), s.clock.Now()); lErr != nil {
			s.log.Warn("ledger record created", "pool", id, "error", lErr)
		}
	}
	return true, nil
}

// Exists reports whether a pool is stored for id.
func (s *Store) Exists(ctx context.Context, id domain.PoolID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.files.Exists(id)
}

// Load reads the pool for id.
func (s *Store) Load(ctx context.Context, id domain.PoolID) (*pool.Pool, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.files.Load(id)
}

// Open returns a read handle on the raw pool file.
func (s *Store) Open(ctx context.Context, id domain.PoolID) (*os.File, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.files.Open(id)
}

// List returns stored identifiers sorted ascending.
func (s *Store) List(ctx context.Context) ([]domain.PoolID, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.files.List()
}

// Delete removes the pool for id and marks it deleted in the ledger.
func (s *Store) Delete(ctx context.Context, id domain.PoolID) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.files.Delete(id); err != nil {
		return err
	}
	if s.ledger != nil {
		if lErr := s.ledger.RecordDeleted(ctx, id, s.clock.Now()); lErr != nil {
			s.log.Warn("ledger record deleted", "pool", id, "error", lErr)
		}
	}
	return nil
}

// History returns ledger rows merged with the pools actually on disk.
// A pool present on disk but missing from the ledger (created before the
// ledger existed) is reported with a zero CreatedAt.
func (s *Store) History(ctx context.Context) ([]app.PoolRecord, error) {
	stored, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[domain.PoolID]bool, len(stored))
	for _, id := range stored {
		live[id] = true
	}
	var entries []Entry
	if s.ledger != nil {
		if entries, err = s.ledger.Entries(ctx); err != nil {
			return nil, err
		}
	}
	out := make([]app.PoolRecord, 0, len(entries)+len(stored))
	seen := make(map[domain.PoolID]bool, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
		out = append(out, app.PoolRecord{ID: e.ID, Size: e.Size, CreatedAt: e.CreatedAt, DeletedAt: e.DeletedAt, Live: live[e.ID]})
	}
	for _, id := range stored {
		if !seen[id] {
			out = append(out, app.PoolRecord{ID: id, Live: true})
		}
	}
	return out, nil
}

// Reconcile aligns the ledger with the pool files: pools on disk without a
// live ledger row are recorded, and live rows whose file is gone are marked
// deleted. It is idempotent and safe to run at startup.
func (s *Store) Reconcile(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.ledger == nil {
		return nil
	}
	stored, err := s.files.List()
	if err != nil {
		return err
	}
	entries, err := s.ledger.Entries(ctx)
	if err != nil {
		return err
	}
	onDisk := make(map[domain.PoolID]bool, len(stored))
	for _, id := range stored {
		onDisk[id] = true
	}
	liveRow := make(map[domain.PoolID]bool, len(entries))
	now := s.clock.Now()
	for _, e := range entries {
		if e.DeletedAt != nil {
			continue
		}
		liveRow[e.ID] = true
		if !onDisk[e.ID] {
			if err := s.ledger.RecordDeleted(ctx, e.ID, now); err != nil {
				return err
			}
		}
	}
	for _, id := range stored {
		if liveRow[id] {
			continue
		}
		size, at := int64(0), now
		if f, oErr := s.files.Open(id); oErr == nil {
			if fi, sErr := f.Stat(); sErr == nil {
				size, at = fi.Size(), fi.ModTime().UTC()
			}
			_ = f.Close()
		}
		if err := s.ledger.RecordCreated(ctx, id, size, at); err != nil {
			return err
		}
	}
	return nil
}
