package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

func scenarioPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.New("2024-06-01", []byte{5, 9, 2, 9, 5})
	require.NoError(t, err)
	return p
}

func seededPool(t *testing.T, seed uint64, size int) *pool.Pool {
	t.Helper()
	b := make([]byte, size)
	require.NoError(t, pool.NewSeeded(seed).Fill(b))
	p, err := pool.New(domain.SinglePoolID, b)
	require.NoError(t, err)
	require.True(t, p.Index().Complete(), "seeded pool must contain every byte value")
	return p
}

func TestEncodeScenarioFirstOccurrence(t *testing.T) {
	p := scenarioPool(t)
	got, err := Encode(p, []byte{9, 5})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, got)

	back, err := Decode(p, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 5}, back)
}

func TestDecodeOutOfRangeScenario(t *testing.T) {
	p := scenarioPool(t)
	out, err := Decode(p, []int{5})
	assert.Nil(t, out)
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 5, de.Position)
	assert.Equal(t, 0, de.Index)
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDecodeBounds(t *testing.T) {
	p := scenarioPool(t)
	tests := []struct {
		name      string
		positions []int
		fail      bool
		index     int
	}{
		{"zero", []int{0}, false, 0},
		{"last", []int{4}, false, 0},
		{"negative", []int{0, -1}, true, 1},
		{"len", []int{1, 2, 5}, true, 2},
		{"far", []int{1 << 30}, true, 0},
		{"empty", nil, false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Decode(p, tc.positions)
			if !tc.fail {
				require.NoError(t, err)
				assert.Len(t, out, len(tc.positions))
				return
			}
			assert.Nil(t, out, "no partial output on failure")
			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tc.index, de.Index)
			assert.Equal(t, tc.positions[tc.index], de.Position)
		})
	}
}

func TestEncodeMissingByte(t *testing.T) {
	p := scenarioPool(t)
	out, err := Encode(p, []byte{9, 2, 7, 5})
	assert.Nil(t, out, "no partial key on failure")
	var ee *EncodeError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, byte(7), ee.Byte)
	assert.Equal(t, 2, ee.Index)
	assert.ErrorIs(t, err, domain.ErrEncode)
	assert.Contains(t, err.Error(), "0x07")
}

func TestRoundTripAllByteValues(t *testing.T) {
	p := seededPool(t, 1, 64<<10)
	data := make([]byte, 0, 1024)
	for i := 0; i < 1024; i++ {
		data = append(data, byte(i*31+7))
	}
	positions, err := Encode(p, data)
	require.NoError(t, err)
	require.Len(t, positions, len(data))
	for _, pos := range positions {
		assert.True(t, pos >= 0 && pos < p.Len())
	}
	back, err := Decode(p, positions)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestRoundTripRandomData(t *testing.T) {
	p := seededPool(t, 2, 64<<10)
	for seed := uint64(10); seed < 15; seed++ {
		data := make([]byte, 4096)
		require.NoError(t, pool.NewSeeded(seed).Fill(data))
		positions, err := Encode(p, data)
		require.NoError(t, err)
		back, err := Decode(p, positions)
		require.NoError(t, err)
		assert.Equal(t, data, back)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	p := seededPool(t, 3, 64<<10)
	data := []byte("the same input twice")
	a, err := Encode(p, data)
	require.NoError(t, err)
	b, err := Encode(p, data)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Every position is the lowest index holding that value.
	for i, pos := range a {
		for j := 0; j < pos; j++ {
			require.NotEqual(t, data[i], p.At(j), "position %d is not the first occurrence", pos)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	p := scenarioPool(t)
	out, err := Encode(p, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func BenchmarkEncode(b *testing.B) {
	buf := make([]byte, pool.DefaultSize)
	_ = pool.NewSeeded(9).Fill(buf)
	p, _ := pool.New(domain.SinglePoolID, buf)
	data := make([]byte, 1<<20)
	_ = pool.NewSeeded(10).Fill(data)
	p.Index()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(p, data); err != nil {
			b.Fatal(err)
		}
	}
}
