package filesystem

import (
	"sync"

	"github.com/haukened/padkey/internal/domain"
)

// keyedLocks hands out one RWMutex per identifier and drops it once no
// caller holds or waits for it.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[domain.PoolID]*refLock
}

type refLock struct {
	sync.RWMutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[domain.PoolID]*refLock)}
}

func (k *keyedLocks) acquire(id domain.PoolID) *refLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l := k.locks[id]
	if l == nil {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	return l
}

func (k *keyedLocks) release(id domain.PoolID, l *refLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, id)
	}
}

func (k *keyedLocks) lock(id domain.PoolID) func() {
	l := k.acquire(id)
	l.Lock()
	return func() {
		l.Unlock()
		k.release(id, l)
	}
}

func (k *keyedLocks) rlock(id domain.PoolID) func() {
	l := k.acquire(id)
	l.RLock()
	return func() {
		l.RUnlock()
		k.release(id, l)
	}
}

// size reports how many identifiers currently have a lock allocated.
func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
