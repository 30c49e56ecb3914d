// Package codec implements position substitution against a random pool.
// Encode replaces every input byte with a position in the pool holding the
// same value; Decode reverses it. Both are pure and all-or-nothing.
package codec

import (
	"fmt"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/pool"
)

// EncodeError reports an input byte value that does not occur in the pool.
type EncodeError struct {
	Byte  byte
	Index int
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("byte 0x%02x at index %d not present in pool", e.Byte, e.Index)
}

// Is makes errors.Is(err, domain.ErrEncode) true.
func (e *EncodeError) Is(target error) bool { return target == domain.ErrEncode }

// DecodeError reports a key position outside the pool.
type DecodeError struct {
	Position int
	Index    int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("position %d at index %d out of range", e.Position, e.Index)
}

// Is makes errors.Is(err, domain.ErrDecode) true.
func (e *DecodeError) Is(target error) bool { return target == domain.ErrDecode }

// Encode returns one pool position per byte of data. The lowest matching
// position is always chosen, so encoding the same data against the same
// pool is reproducible. If some byte value is missing from the pool no
// positions are returned.
func Encode(p *pool.Pool, data []byte) ([]int, error) {
	ix := p.Index()
	// Resolve each distinct value once.
	var first [256]int
	var seen [256]bool
	out := make([]int, len(data))
	for i, b := range data {
		if !seen[b] {
			pos, ok := ix.First(b)
			if !ok {
				return nil, &EncodeError{Byte: b, Index: i}
			}
			first[b] = pos
			seen[b] = true
		}
		out[i] = first[b]
	}
	return out, nil
}

// Decode resolves positions against the pool. Any position outside
// [0, p.Len()) fails the whole call.
func Decode(p *pool.Pool, positions []int) ([]byte, error) {
	n := p.Len()
	out := make([]byte, len(positions))
	for i, pos := range positions {
		if pos < 0 || pos >= n {
			return nil, &DecodeError{Position: pos, Index: i}
		}
		out[i] = p.At(pos)
	}
	return out, nil
}
