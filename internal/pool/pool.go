// Package pool defines the immutable random byte pool and the generators
// used to fill new pools. A Pool is safe for concurrent use: its bytes are
// never modified after construction and its inverse index is built once.
package pool

import (
	"errors"
	"sync"

	"github.com/haukened/padkey/internal/domain"
)

// DefaultSize is the pool length used unless configured otherwise (10 MiB).
const DefaultSize = 10 << 20

// Pool is a fixed-size buffer of random bytes identified by a PoolID.
type Pool struct {
	id    domain.PoolID
	bytes []byte

	once  sync.Once
	index *Index
}

// New wraps b as a pool. The caller must not modify b afterwards.
func New(id domain.PoolID, b []byte) (*Pool, error) {
	if !id.Valid() {
		return nil, errors.New("invalid pool id")
	}
	if len(b) == 0 {
		return nil, errors.New("empty pool")
	}
	return &Pool{id: id, bytes: b}, nil
}

// ID returns the pool identifier.
func (p *Pool) ID() domain.PoolID { return p.id }

// Len returns the number of bytes in the pool.
func (p *Pool) Len() int { return len(p.bytes) }

// At returns the byte at position i. The caller bounds-checks i.
func (p *Pool) At(i int) byte { return p.bytes[i] }

// Bytes returns a copy of the pool contents.
func (p *Pool) Bytes() []byte {
	out := make([]byte, len(p.bytes))
	copy(out, p.bytes)
	return out
}

// Index returns the inverse index for the pool, building it on first use.
func (p *Pool) Index() *Index {
	p.once.Do(func() { p.index = buildIndex(p.bytes) })
	return p.index
}
