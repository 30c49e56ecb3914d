package filesystem

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

func newStore(t *testing.T) (*PoolStore, string) {
	t.Helper()
	dir := t.TempDir()
	ps, err := New(dir)
	require.NoError(t, err)
	return ps, dir
}

func TestNewBadRoot(t *testing.T) {
	_, err := New("/path/does/not/exist")
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))
	_, err = New(f)
	assert.Error(t, err)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "server_data.bin", FileName(domain.SinglePoolID))
	assert.Equal(t, "server_data_2024-06-01.bin", FileName("2024-06-01"))

	id, ok := parseName("server_data_2024-06-01.bin")
	assert.True(t, ok)
	assert.Equal(t, domain.PoolID("2024-06-01"), id)
	for _, bad := range []string{"server_data_2024-6-1.bin", "server_data_x.bin", ".pool-1.tmp", "notes.txt", "server_data_2024-06-01.bin.bak"} {
		_, ok := parseName(bad)
		assert.False(t, ok, bad)
	}
}

func TestCreateLoadRoundTrip(t *testing.T) {
	ps, dir := newStore(t)
	created, err := ps.Create("2024-06-01", pool.NewSeeded(1), 1024)
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(filepath.Join(dir, "server_data_2024-06-01.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), info.Size())
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	p, err := ps.Load("2024-06-01")
	require.NoError(t, err)
	want := make([]byte, 1024)
	require.NoError(t, pool.NewSeeded(1).Fill(want))
	assert.Equal(t, want, p.Bytes())
	assert.Equal(t, domain.PoolID("2024-06-01"), p.ID())
}

func TestCreateIsIdempotent(t *testing.T) {
	ps, _ := newStore(t)
	_, err := ps.Create(domain.SinglePoolID, pool.NewSeeded(1), 512)
	require.NoError(t, err)
	first, err := ps.Load(domain.SinglePoolID)
	require.NoError(t, err)

	created, err := ps.Create(domain.SinglePoolID, pool.NewSeeded(2), 512)
	require.NoError(t, err)
	assert.False(t, created)

	second, err := ps.Load(domain.SinglePoolID)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), second.Bytes(), "second create must not change pool bytes")
}

func TestConcurrentCreateWritesOnce(t *testing.T) {
	ps, _ := newStore(t)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			created, err := ps.Create("2024-06-01", pool.NewSeeded(seed), 256)
			assert.NoError(t, err)
			if created {
				wins.Add(1)
			}
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Zero(t, ps.locks.size(), "locks must be released")
}

type failingGen struct{}

func (failingGen) Fill([]byte) error { return errors.New("entropy exhausted") }

func TestCreateFailureLeavesNothing(t *testing.T) {
	ps, dir := newStore(t)
	_, err := ps.Create("2024-06-01", failingGen{}, 64)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCreate)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial or temp files may remain")

	exists, err := ps.Exists("2024-06-01")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ps, _ := newStore(t)
	_, err := ps.Create("../escape", pool.NewSeeded(1), 10)
	assert.Error(t, err)
	_, err = ps.Create("2024-06-01", pool.NewSeeded(1), 0)
	assert.ErrorIs(t, err, domain.ErrCreate)
}

func TestCreateUnwritableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	ps, dir := newStore(t)
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })
	_, err := ps.Create("2024-06-01", pool.NewSeeded(1), 10)
	assert.ErrorIs(t, err, domain.ErrCreate)
}

func TestListSortedAndFiltered(t *testing.T) {
	ps, dir := newStore(t)
	for _, id := range []domain.PoolID{"2024-01-03", "2024-01-01", domain.SinglePoolID, "2024-01-02"} {
		_, err := ps.Create(id, pool.FixedGenerator{1}, 4)
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pool-123.tmp"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "server_data_2024-01-09.bin"), 0o700))

	ids, err := ps.List()
	require.NoError(t, err)
	assert.Equal(t, []domain.PoolID{"2024-01-01", "2024-01-02", "2024-01-03", domain.SinglePoolID}, ids)
}

func TestDelete(t *testing.T) {
	ps, _ := newStore(t)
	_, err := ps.Create("2024-06-01", pool.FixedGenerator{1}, 4)
	require.NoError(t, err)
	require.NoError(t, ps.Delete("2024-06-01"))

	_, err = ps.Load("2024-06-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, ps.Delete("2024-06-01"), domain.ErrNotFound)
}

func TestOpenSurvivesDelete(t *testing.T) {
	ps, _ := newStore(t)
	_, err := ps.Create("2024-06-01", pool.FixedGenerator{7, 8}, 6)
	require.NoError(t, err)
	f, err := ps.Open("2024-06-01")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, ps.Delete("2024-06-01"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 8, 7, 8, 7, 8}, buf.Bytes())

	_, err = ps.Open("2024-06-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoadEmptyFileFails(t *testing.T) {
	ps, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server_data.bin"), nil, 0o600))
	_, err := ps.Load(domain.SinglePoolID)
	assert.Error(t, err)
}
