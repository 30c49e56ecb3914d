// Package keyfile reads and writes key artifacts: the JSON record a client
// keeps to rebuild a file from a pool. Keys may be stored plain or zstd
// compressed; readers detect the format from the content.
package keyfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/haukened/padkey/internal/domain"
)

// CompressedExt marks key files written with zstd compression.
const CompressedExt = ".zst"

// ErrTooLarge reports a key whose decoded form exceeds the read limit.
var ErrTooLarge = errors.New("key too large")

// zstdMagic is the frame magic number of a zstd stream.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Key is the client-held artifact. Date names the pool the key was encoded
// against; the server substitutes its fixed pool when running in single mode.
type Key struct {
	Date          string `json:"date"`
	FileExtension string `json:"fileExtension"`
	Positions     []int  `json:"positions"`
}

// wireKey detects missing fields while decoding.
type wireKey struct {
	Date          *string `json:"date"`
	FileExtension *string `json:"fileExtension"`
	Positions     *[]int  `json:"positions"`
}

// Marshal encodes k as JSON. A nil Positions slice is written as [].
func Marshal(k Key) ([]byte, error) {
	if k.Positions == nil {
		k.Positions = []int{}
	}
	return json.Marshal(k)
}

// Unmarshal decodes and validates a JSON key. Every field must be present
// with the right type. Failures wrap domain.ErrInvalidKey.
func Unmarshal(b []byte) (Key, error) {
	var w wireKey
	if err := json.Unmarshal(b, &w); err != nil {
		return Key{}, fmt.Errorf("%w: %w", domain.ErrInvalidKey, err)
	}
	switch {
	case w.Date == nil:
		return Key{}, fmt.Errorf("%w: missing date", domain.ErrInvalidKey)
	case w.FileExtension == nil:
		return Key{}, fmt.Errorf("%w: missing fileExtension", domain.ErrInvalidKey)
	case w.Positions == nil || *w.Positions == nil:
		return Key{}, fmt.Errorf("%w: missing positions", domain.ErrInvalidKey)
	case !ValidExtension(*w.FileExtension):
		return Key{}, fmt.Errorf("%w: bad fileExtension %q", domain.ErrInvalidKey, *w.FileExtension)
	}
	return Key{Date: *w.Date, FileExtension: *w.FileExtension, Positions: *w.Positions}, nil
}

// Write encodes k to w, optionally zstd compressed.
func Write(w io.Writer, k Key, compress bool) error {
	b, err := Marshal(k)
	if err != nil {
		return err
	}
	if !compress {
		_, err = w.Write(b)
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err = enc.Write(b); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Read decodes a key from r, decompressing if the stream is zstd.
func Read(r io.Reader) (Key, error) {
	return ReadLimit(r, 0)
}

// ReadLimit is Read with a cap on the decoded JSON size. A positive limit
// applies after decompression; exceeding it returns ErrTooLarge.
func ReadLimit(r io.Reader, limit int64) (Key, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))
	var src io.Reader = br
	if bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return Key{}, fmt.Errorf("%w: %w", domain.ErrInvalidKey, err)
		}
		defer dec.Close()
		src = dec
	}
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	b, err := io.ReadAll(src)
	switch {
	case err != nil:
		return Key{}, fmt.Errorf("%w: %w", domain.ErrInvalidKey, err)
	case limit > 0 && int64(len(b)) > limit:
		return Key{}, ErrTooLarge
	}
	return Unmarshal(b)
}

// WriteFile writes k to path, compressing when path ends in CompressedExt.
// The file is created exclusively so an existing key is never replaced.
func WriteFile(path string, k Key) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 user supplied output path
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return Write(f, k, strings.HasSuffix(path, CompressedExt))
}

// ReadFile reads a key file written by WriteFile or by any client producing
// the same JSON record.
func ReadFile(path string) (Key, error) {
	f, err := os.Open(path) // #nosec G304 user supplied key path
	if err != nil {
		return Key{}, err
	}
	defer f.Close()
	return Read(f)
}

// Extension returns the suffix of name after the last dot, or "" when the
// name has none.
func Extension(name string) string {
	ext := filepath.Ext(filepath.Base(name))
	return strings.TrimPrefix(ext, ".")
}

// ValidExtension reports whether ext can be appended to a file name without
// leaving its directory.
func ValidExtension(ext string) bool {
	return !strings.ContainsAny(ext, "/\\\x00") && ext != ".."
}

// ReconstructedName is the file name used for decoded output. Extensions
// that fail ValidExtension are dropped.
func ReconstructedName(ext string) string {
	if ext == "" || !ValidExtension(ext) {
		return "reconstructed_file"
	}
	return "reconstructed_file." + ext
}
