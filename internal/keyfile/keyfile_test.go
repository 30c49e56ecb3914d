package keyfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/padkey/internal/domain"
)

func TestMarshalFieldNames(t *testing.T) {
	b, err := Marshal(Key{Date: "2024-06-01", FileExtension: "png", Positions: []int{1, 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-06-01","fileExtension":"png","positions":[1,0]}`, string(b))

	b, err = Marshal(Key{Date: "2024-06-01"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-06-01","fileExtension":"","positions":[]}`, string(b))
}

func TestUnmarshalValidation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"valid", `{"date":"2024-06-01","fileExtension":"txt","positions":[3,4]}`, true},
		{"empty positions", `{"date":"2024-06-01","fileExtension":"","positions":[]}`, true},
		{"missing date", `{"fileExtension":"txt","positions":[]}`, false},
		{"date not string", `{"date":20240601,"fileExtension":"txt","positions":[]}`, false},
		{"missing extension", `{"date":"2024-06-01","positions":[]}`, false},
		{"positions null", `{"date":"2024-06-01","fileExtension":"txt","positions":null}`, false},
		{"positions not array", `{"date":"2024-06-01","fileExtension":"txt","positions":"1,2"}`, false},
		{"fractional position", `{"date":"2024-06-01","fileExtension":"txt","positions":[1.5]}`, false},
		{"not json", `hello`, false},
		{"extension with slash", `{"date":"d","fileExtension":"x/../../tmp/out","positions":[]}`, false},
		{"extension with backslash", `{"date":"d","fileExtension":"x\\..\\out","positions":[]}`, false},
		{"extension dotdot", `{"date":"d","fileExtension":"..","positions":[]}`, false},
		{"extension with dots", `{"date":"d","fileExtension":"tar.gz","positions":[]}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tc.in))
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInvalidKey)
		})
	}
}

func TestUnmarshalKeepsNegativePositions(t *testing.T) {
	// Range checks belong to decode, which reports the failing index.
	k, err := Unmarshal([]byte(`{"date":"d","fileExtension":"","positions":[-1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{-1, 2}, k.Positions)
}

func TestWriteReadPlainAndCompressed(t *testing.T) {
	k := Key{Date: "2024-06-01", FileExtension: "bin", Positions: make([]int, 5000)}
	for i := range k.Positions {
		k.Positions[i] = i % 300
	}
	var plain, packed bytes.Buffer
	require.NoError(t, Write(&plain, k, false))
	require.NoError(t, Write(&packed, k, true))
	assert.Less(t, packed.Len(), plain.Len())
	assert.Equal(t, byte('{'), plain.Bytes()[0])

	got, err := Read(&plain)
	require.NoError(t, err)
	assert.Equal(t, k, got)
	got, err = Read(&packed)
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestWriteFileReadFile(t *testing.T) {
	dir := t.TempDir()
	k := Key{Date: "2024-06-01", FileExtension: "txt", Positions: []int{9, 8, 7}}
	for _, name := range []string{"a.key.json", "a.key.json" + CompressedExt} {
		p := filepath.Join(dir, name)
		require.NoError(t, WriteFile(p, k))
		got, err := ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, k, got)
		// never overwrite an existing key
		assert.Error(t, WriteFile(p, k))
	}
	_, err := ReadFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", Extension("photo.png"))
	assert.Equal(t, "gz", Extension("/tmp/archive.tar.gz"))
	assert.Equal(t, "", Extension("Makefile"))
	assert.Equal(t, "", Extension("dir.d/Makefile"))
}

func TestReconstructedName(t *testing.T) {
	assert.Equal(t, "reconstructed_file.png", ReconstructedName("png"))
	assert.Equal(t, "reconstructed_file", ReconstructedName(""))
	assert.Equal(t, "reconstructed_file", ReconstructedName("x/../../../../tmp/out"))
	assert.Equal(t, "reconstructed_file", ReconstructedName(`..\\evil`))

	dir := filepath.Join(t.TempDir(), "keys")
	out := filepath.Join(dir, ReconstructedName("x/../../out"))
	assert.Equal(t, dir, filepath.Dir(out))
}

func TestReadLimit(t *testing.T) {
	big := Key{Date: "d", Positions: make([]int, 200_000)}
	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, big, compress))
		if compress {
			assert.Less(t, buf.Len(), 4096)
		}
		_, err := ReadLimit(bytes.NewReader(buf.Bytes()), 4096)
		assert.ErrorIs(t, err, ErrTooLarge, "compress=%v", compress)

		k, err := ReadLimit(bytes.NewReader(buf.Bytes()), 0)
		require.NoError(t, err)
		assert.Len(t, k.Positions, 200_000)
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Key{Date: "d", Positions: []int{1, 2}}, true))
	k, err := ReadLimit(&buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, k.Positions)
}
