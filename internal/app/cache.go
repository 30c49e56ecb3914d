package app

import (
	"sync"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

// poolCache keeps the most recently loaded pools (with their inverse
// indexes) in memory. Concurrent requests for the same pool share one load.
type poolCache struct {
	mu    sync.Mutex
	cap   int
	order []domain.PoolID // least recently used first
	items map[domain.PoolID]*cacheEntry
}

type cacheEntry struct {
	ready chan struct{}
	p     *pool.Pool
	err   error
}

func newPoolCache(capacity int) *poolCache {
	return &poolCache{cap: capacity, items: make(map[domain.PoolID]*cacheEntry)}
}

func (c *poolCache) get(id domain.PoolID, load func() (*pool.Pool, error)) (*pool.Pool, error) {
	if c == nil || c.cap <= 0 {
		return load()
	}
	c.mu.Lock()
	if e, ok := c.items[id]; ok {
		c.touch(id)
		c.mu.Unlock()
		<-e.ready
		return e.p, e.err
	}
	e := &cacheEntry{ready: make(chan struct{})}
	c.items[id] = e
	c.order = append(c.order, id)
	for len(c.order) > c.cap {
		c.removeLocked(c.order[0])
	}
	c.mu.Unlock()

	e.p, e.err = load()
	if e.err == nil {
		// build the index once, outside any request's critical path afterwards
		e.p.Index()
	}
	close(e.ready)
	if e.err != nil {
		c.mu.Lock()
		if c.items[id] == e {
			c.removeLocked(id)
		}
		c.mu.Unlock()
	}
	return e.p, e.err
}

// evict drops id from the cache.
func (c *poolCache) evict(id domain.PoolID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()
}

func (c *poolCache) touch(id domain.PoolID) {
	for i, v := range c.order {
		if v == id {
			c.order = append(append(c.order[:i:i], c.order[i+1:]...), id)
			return
		}
	}
}

func (c *poolCache) removeLocked(id domain.PoolID) {
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *poolCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
