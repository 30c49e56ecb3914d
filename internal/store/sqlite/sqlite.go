// Package sqlite provides a SQLite-backed implementation of the store.Ledger
// port, recording when each pool was created and evicted.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/store"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

var _ store.Ledger = (*Ledger)(nil)

// Ledger implements store.Ledger using SQLite (via database/sql). It is safe
// for concurrent use; database/sql manages connection pooling and serialization.
type Ledger struct{ db *sql.DB }

// New constructs a Ledger, initializing the required schema if absent.
func New(db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) init() error {
	schema := `CREATE TABLE IF NOT EXISTS pools (
id TEXT PRIMARY KEY,
size INTEGER NOT NULL,
created_at INTEGER NOT NULL,
deleted_at INTEGER
);`
	_, err := l.db.Exec(schema)
	return err
}

// RecordCreated upserts a live row for id. A pool re-created after eviction
// gets a fresh creation time and loses its deletion mark.
func (l *Ledger) RecordCreated(ctx context.Context, id domain.PoolID, size int64, at time.Time) error {
	const q = `INSERT INTO pools (id, size, created_at, deleted_at) VALUES (?,?,?,NULL)
ON CONFLICT(id) DO UPDATE SET size=excluded.size, created_at=excluded.created_at, deleted_at=NULL`
	_, err := l.db.ExecContext(ctx, q, id.String(), size, at.Unix())
	return err
}

// RecordDeleted marks a live row as deleted. Unknown or already deleted
// identifiers are left untouched.
func (l *Ledger) RecordDeleted(ctx context.Context, id domain.PoolID, at time.Time) error {
	const q = `UPDATE pools SET deleted_at=? WHERE id=? AND deleted_at IS NULL`
	_, err := l.db.ExecContext(ctx, q, at.Unix(), id.String())
	return err
}

// Entries returns all rows ordered by identifier.
func (l *Ledger) Entries(ctx context.Context) ([]store.Entry, error) {
	const q = `SELECT id, size, created_at, deleted_at FROM pools ORDER BY id`
	rows, err := l.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Entry
	for rows.Next() {
		var (
			e       store.Entry
			id      string
			created int64
			deleted sql.NullInt64
		)
		if err = rows.Scan(&id, &e.Size, &created, &deleted); err != nil {
			return nil, err
		}
		e.ID = domain.PoolID(id)
		e.CreatedAt = time.Unix(created, 0).UTC()
		if deleted.Valid {
			d := time.Unix(deleted.Int64, 0).UTC()
			e.DeletedAt = &d
		}
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
