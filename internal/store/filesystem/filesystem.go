// Package filesystem provides a PoolFiles implementation backed by the local
// filesystem. Every pool is one immutable file named after its identifier.
package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
	"github.com/haukened/padkey/internal/store"
)

// Ensure PoolStore implements store.PoolFiles
var _ store.PoolFiles = (*PoolStore)(nil)

const (
	singleName  = "server_data.bin"
	dailyPrefix = "server_data_"
	suffix      = ".bin"
)

// PoolStore implements store.PoolFiles using the local filesystem.
// Create and Delete for one identifier are mutually exclusive with each
// other and with reads of that identifier; different identifiers never
// contend.
type PoolStore struct {
	root  string
	locks *keyedLocks
	genMu sync.Mutex // generators are not required to be goroutine safe
}

// New returns a filesystem-backed pool store rooted at dir. The directory
// must already exist.
func New(root string) (*PoolStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("pool root is not a directory")
	}
	return &PoolStore{root: root, locks: newKeyedLocks()}, nil
}

// FileName returns the file name used for id.
func FileName(id domain.PoolID) string {
	if id == domain.SinglePoolID {
		return singleName
	}
	return dailyPrefix + id.String() + suffix
}

// parseName is the inverse of FileName. It rejects anything else in the directory.
func parseName(name string) (domain.PoolID, bool) {
	if name == singleName {
		return domain.SinglePoolID, true
	}
	if !strings.HasPrefix(name, dailyPrefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	id, err := domain.ParseDate(name[len(dailyPrefix) : len(name)-len(suffix)])
	if err != nil {
		return "", false
	}
	return id, true
}

func (s *PoolStore) path(id domain.PoolID) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("invalid pool id %q", id)
	}
	return filepath.Join(s.root, FileName(id)), nil
}

// Create writes size bytes from gen to a hidden temp file, syncs it, and
// hard-links it into place. The link fails if the pool already exists, so a
// concurrent or repeated Create never overwrites bytes that keys may
// already reference, and a partially written pool is never visible.
func (s *PoolStore) Create(id domain.PoolID, gen pool.Generator, size int) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	if size <= 0 {
		return false, fmt.Errorf("%w: invalid pool size %d", domain.ErrCreate, size)
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := os.Stat(p); err == nil {
		return false, nil
	}

	buf := make([]byte, size)
	s.genMu.Lock()
	err = gen.Fill(buf)
	s.genMu.Unlock()
	if err != nil {
		return false, fmt.Errorf("%w: generate %s: %w", domain.ErrCreate, id, err)
	}

	tmp, err := os.CreateTemp(s.root, ".pool-*.tmp")
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCreate, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err = tmp.Write(buf); err == nil {
		err = tmp.Sync()
	}
	if cErr := tmp.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return false, fmt.Errorf("%w: write %s: %w", domain.ErrCreate, id, err)
	}
	if err := os.Link(tmpName, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: publish %s: %w", domain.ErrCreate, id, err)
	}
	return true, nil
}

// Exists reports whether a pool file exists for id.
func (s *PoolStore) Exists(id domain.PoolID) (bool, error) {
	p, err := s.path(id)
	if err != nil {
		return false, err
	}
	unlock := s.locks.rlock(id)
	defer unlock()
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Load reads the whole pool into memory.
func (s *PoolStore) Load(id domain.PoolID) (*pool.Pool, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.rlock(id)
	defer unlock()
	b, err := os.ReadFile(p) // #nosec G304 path built from a validated id
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return pool.New(id, b)
}

// Open returns the pool file for streaming. The handle stays valid if the
// pool is deleted while it is being read.
func (s *PoolStore) Open(id domain.PoolID) (*os.File, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.rlock(id)
	defer unlock()
	f, err := os.Open(p) // #nosec G304 path built from a validated id
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// List returns all pool identifiers present, sorted ascending. Temp files
// and unrelated files are ignored.
func (s *PoolStore) List() ([]domain.PoolID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var ids []domain.PoolID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := parseName(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Delete removes the pool file for id.
func (s *PoolStore) Delete(id domain.PoolID) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(id)
	defer unlock()
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrDelete, id, err)
	}
	return nil
}
