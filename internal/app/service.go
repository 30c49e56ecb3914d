// Package app contains the application orchestration layer for padkey. It
// resolves pool identifiers for the configured mode and runs the codec
// against pools loaded through the store port.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/haukened/padkey/internal/codec"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/keyfile"
	"github.com/haukened/padkey/internal/pool"
)

// ErrTooLarge indicates the input to encode or decode exceeds the configured maximum.
var ErrTooLarge = errors.New("input too large")

// Counter and summary names emitted by the service.
const (
	CounterPoolDownloads  = "pool_downloads_total"
	CounterEncodes        = "encodes_total"
	CounterDecodes        = "decodes_total"
	CounterCodecFailures  = "codec_failures_total"
	CounterPoolNotFound   = "pool_not_found_total"
	SummaryEncodeBytes    = "encode_bytes"
	SummaryEncodeDuration = "encode_duration_ms"
)

// Settings is the retention configuration exposed to clients.
type Settings struct {
	DaysToKeep int         `json:"daysToKeep"`
	Mode       domain.Mode `json:"serverDataMode"`
}

// PoolsView summarizes stored pools for operators.
type PoolsView struct {
	Mode    domain.Mode     `json:"mode"`
	Current domain.PoolID   `json:"current"`
	Stored  []domain.PoolID `json:"stored"`
	History []PoolRecord    `json:"history"`
}

// Service resolves pools for the configured mode and runs encode/decode.
type Service struct {
	Store      PoolStore
	Clock      Clock
	Mode       domain.Mode
	DaysToKeep int
	MaxInput   int64 // maximum bytes to encode or positions to decode; 0 disables
	Metrics    Metrics

	cache *poolCache
}

// Options configures NewService.
type Options struct {
	Mode       domain.Mode
	DaysToKeep int
	MaxInput   int64
	CachePools int // number of loaded pools kept in memory; 0 disables caching
	Metrics    Metrics
}

// NewService returns a Service over store.
func NewService(store PoolStore, clock Clock, opts Options) *Service {
	m := opts.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &Service{
		Store:      store,
		Clock:      clock,
		Mode:       opts.Mode,
		DaysToKeep: opts.DaysToKeep,
		MaxInput:   opts.MaxInput,
		Metrics:    m,
		cache:      newPoolCache(opts.CachePools),
	}
}

func (s *Service) metrics() Metrics {
	if s.Metrics == nil {
		return nopMetrics{}
	}
	return s.Metrics
}

// Settings returns the retention settings clients use for validity guidance.
func (s *Service) Settings() Settings {
	return Settings{DaysToKeep: s.DaysToKeep, Mode: s.Mode}
}

// CurrentID returns the identifier of the pool new keys are encoded against.
func (s *Service) CurrentID() domain.PoolID { return s.Mode.CurrentID(s.Clock.Now()) }

// OpenPool resolves date for the configured mode and opens the raw pool.
// Single mode ignores date.
func (s *Service) OpenPool(ctx context.Context, date string) (*os.File, domain.PoolID, error) {
	id, err := s.Mode.Resolve(date)
	if err != nil {
		// A malformed date names a pool that never existed.
		s.metrics().Inc(CounterPoolNotFound, 1)
		return nil, "", fmt.Errorf("%w: malformed date %q", domain.ErrNotFound, date)
	}
	f, err := s.Store.Open(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics().Inc(CounterPoolNotFound, 1)
		}
		return nil, id, err
	}
	s.metrics().Inc(CounterPoolDownloads, 1)
	return f, id, nil
}

// Encode turns data into a key against the pool for date. The key records
// date verbatim, so a client can request the same pool later.
func (s *Service) Encode(ctx context.Context, date, ext string, data []byte) (keyfile.Key, error) {
	if s.MaxInput > 0 && int64(len(data)) > s.MaxInput {
		return keyfile.Key{}, ErrTooLarge
	}
	p, err := s.pool(ctx, date)
	if err != nil {
		return keyfile.Key{}, err
	}
	start := time.Now()
	positions, err := codec.Encode(p, data)
	if err != nil {
		s.metrics().Inc(CounterCodecFailures, 1)
		return keyfile.Key{}, err
	}
	s.metrics().Inc(CounterEncodes, 1)
	s.metrics().Observe(SummaryEncodeBytes, int64(len(data)))
	s.metrics().Observe(SummaryEncodeDuration, time.Since(start).Milliseconds())
	return keyfile.Key{Date: date, FileExtension: ext, Positions: positions}, nil
}

// Decode rebuilds the original bytes from k.
func (s *Service) Decode(ctx context.Context, k keyfile.Key) ([]byte, error) {
	if s.MaxInput > 0 && int64(len(k.Positions)) > s.MaxInput {
		return nil, ErrTooLarge
	}
	p, err := s.pool(ctx, k.Date)
	if err != nil {
		return nil, err
	}
	out, err := codec.Decode(p, k.Positions)
	if err != nil {
		s.metrics().Inc(CounterCodecFailures, 1)
		return nil, err
	}
	s.metrics().Inc(CounterDecodes, 1)
	return out, nil
}

func (s *Service) pool(ctx context.Context, date string) (*pool.Pool, error) {
	id, err := s.Mode.Resolve(date)
	if err != nil {
		return nil, err
	}
	p, err := s.cache.get(id, func() (*pool.Pool, error) { return s.Store.Load(ctx, id) })
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics().Inc(CounterPoolNotFound, 1)
	}
	return p, err
}

// Evicted drops a deleted pool from memory. The scheduler calls it after
// retention removes id.
func (s *Service) Evicted(id domain.PoolID) { s.cache.evict(id) }

// Pools reports stored pools and their history.
func (s *Service) Pools(ctx context.Context) (PoolsView, error) {
	stored, err := s.Store.List(ctx)
	if err != nil {
		return PoolsView{}, err
	}
	hist, err := s.Store.History(ctx)
	if err != nil {
		return PoolsView{}, err
	}
	if stored == nil {
		stored = []domain.PoolID{}
	}
	if hist == nil {
		hist = []PoolRecord{}
	}
	return PoolsView{Mode: s.Mode, Current: s.CurrentID(), Stored: stored, History: hist}, nil
}

// Ready reports an error unless the current pool exists.
func (s *Service) Ready(ctx context.Context) error {
	id := s.CurrentID()
	ok, err := s.Store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("current pool %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
