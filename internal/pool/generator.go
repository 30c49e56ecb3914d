package pool

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
)

// Generator fills a new pool with random bytes. Each byte must be drawn
// independently and uniformly from the full byte range.
type Generator interface {
	Fill(p []byte) error
}

// CryptoGenerator reads from crypto/rand. It is the production generator.
type CryptoGenerator struct{}

// Fill implements Generator.
func (CryptoGenerator) Fill(p []byte) error {
	_, err := io.ReadFull(rand.Reader, p)
	return err
}

// SeededGenerator produces a reproducible stream from a 64-bit seed using
// ChaCha8. Two generators with the same seed fill identical pools.
type SeededGenerator struct {
	src *mrand.ChaCha8
}

// NewSeeded returns a SeededGenerator for seed.
func NewSeeded(seed uint64) *SeededGenerator {
	var s [32]byte
	binary.LittleEndian.PutUint64(s[:], seed)
	return &SeededGenerator{src: mrand.NewChaCha8(s)}
}

// Fill implements Generator.
func (g *SeededGenerator) Fill(p []byte) error {
	_, err := g.src.Read(p)
	return err
}

// FixedGenerator repeats a fixed pattern. It exists for tests that need
// exact pool contents.
type FixedGenerator []byte

// Fill implements Generator.
func (f FixedGenerator) Fill(p []byte) error {
	if len(f) == 0 {
		return io.ErrUnexpectedEOF
	}
	for i := range p {
		p[i] = f[i%len(f)]
	}
	return nil
}
