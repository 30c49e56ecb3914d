// Package scheduler runs pool rotation: creating the current pool and
// evicting old daily pools, once at startup and then at every UTC midnight.
// It operates independently from the app Service to keep lifecycle concerns
// isolated from request path logic.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/retention"
)

// Store abstracts the pool operations the Scheduler requires.
type Store interface {
	// Create writes the pool for id unless it exists; it reports whether it wrote one.
	Create(ctx context.Context, id domain.PoolID) (bool, error)
	// List returns stored identifiers sorted ascending.
	List(ctx context.Context) ([]domain.PoolID, error)
	Delete(ctx context.Context, id domain.PoolID) error
}

// Evictor is told about every pool removed by retention.
type Evictor interface {
	Evicted(id domain.PoolID)
}

// Collector receives counters and observations for export.
type Collector interface {
	Inc(name string, delta int64)
	Observe(name string, v int64)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Names emitted to the Collector.
const (
	CounterPoolsCreated     = "pools_created_total"
	CounterPoolsDeleted     = "pools_deleted_total"
	CounterRotationErrors   = "rotation_errors_total"
	CounterRotationsSkipped = "rotations_skipped_total"
	SummaryRotationMS       = "rotation_duration_ms"
)

// Config holds tunables for the Scheduler.
type Config struct {
	Mode       domain.Mode
	DaysToKeep int
	Clock      Clock        // optional (defaults to UTC wall clock)
	Logger     *slog.Logger // optional logger (defaults to slog.Default())
	Evictor    Evictor      // optional
	// Trigger replaces the midnight timer when non-nil. Each receive starts a rotation.
	Trigger <-chan time.Time
}

// Metrics accumulates counters (in-memory) for operational insight.
type Metrics struct {
	mu             sync.Mutex
	Rotations      uint64
	Skipped        uint64
	Created        uint64
	Deleted        uint64
	Errors         uint64
	LastDurationMS int64
}

// MetricsView is a read-only snapshot safe to copy.
type MetricsView struct {
	Rotations      uint64
	Skipped        uint64
	Created        uint64
	Deleted        uint64
	Errors         uint64
	LastDurationMS int64
}

func (m *Metrics) add(created, deleted, errs int) {
	m.mu.Lock()
	m.Created += uint64(created)
	m.Deleted += uint64(deleted)
	m.Errors += uint64(errs)
	m.mu.Unlock()
}

func (m *Metrics) skip() {
	m.mu.Lock()
	m.Skipped++
	m.mu.Unlock()
}

func (m *Metrics) recordRotation(d time.Duration) {
	m.mu.Lock()
	m.Rotations++
	m.LastDurationMS = d.Milliseconds()
	m.mu.Unlock()
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

type nopCollector struct{}

func (nopCollector) Inc(string, int64)     {}
func (nopCollector) Observe(string, int64) {}

// Scheduler encapsulates the rotation loop. A rotation runs to completion
// before another may start; triggers that arrive meanwhile are dropped.
type Scheduler struct {
	store     Store
	collector Collector
	cfg       Config
	metrics   *Metrics
	rotating  atomic.Bool
	inflight  sync.WaitGroup

	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// New constructs but does not start a Scheduler. collector may be nil.
func New(store Store, collector Collector, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = utcClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.Mode.Valid() {
		cfg.Mode = domain.ModeDaily
	}
	if collector == nil {
		collector = nopCollector{}
	}
	return &Scheduler{
		store:     store,
		collector: collector,
		cfg:       cfg,
		metrics:   &Metrics{},
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// RunStartup ensures the current pool exists and, in daily mode, runs one
// retention pass to clear pools left over from a previous run or from a
// lower DaysToKeep.
func (s *Scheduler) RunStartup(ctx context.Context) {
	log := s.cfg.Logger.With("domain", "scheduler", "action", "startup")
	id := s.cfg.Mode.CurrentID(s.cfg.Clock.Now())
	created, errs := s.ensure(ctx, log, id)
	deleted := 0
	if s.cfg.Mode == domain.ModeDaily {
		var rErrs int
		deleted, rErrs = s.retain(ctx, log)
		errs += rErrs
	}
	s.record(created, deleted, errs)
	log.Info("startup complete", "mode", s.cfg.Mode, "pool", id, "created", created == 1, "deleted", deleted, "errors", errs)
}

// Rotate runs retention then ensures today's pool exists. It returns false
// without doing anything if another rotation is in progress.
func (s *Scheduler) Rotate(ctx context.Context) bool {
	log := s.cfg.Logger.With("domain", "scheduler", "action", "rotate")
	if !s.rotating.CompareAndSwap(false, true) {
		s.metrics.skip()
		s.collector.Inc(CounterRotationsSkipped, 1)
		log.Warn("rotation skipped", "reason", "already_rotating")
		return false
	}
	defer s.rotating.Store(false)

	start := time.Now()
	deleted, errs := s.retain(ctx, log)
	id := s.cfg.Mode.CurrentID(s.cfg.Clock.Now())
	created, cErrs := s.ensure(ctx, log, id)
	errs += cErrs
	s.record(created, deleted, errs)
	elapsed := time.Since(start)
	s.metrics.recordRotation(elapsed)
	s.collector.Observe(SummaryRotationMS, elapsed.Milliseconds())
	log.Info("rotation complete", "pool", id, "created", created == 1, "deleted", deleted, "errors", errs, "ms", elapsed.Milliseconds())
	return true
}

// State reports "rotating" while a rotation runs and "idle" otherwise.
func (s *Scheduler) State() string {
	if s.rotating.Load() {
		return "rotating"
	}
	return "idle"
}

// Start launches the rotation loop in a new goroutine. Single mode has no
// rotation boundary, so Start does nothing there.
func (s *Scheduler) Start(ctx context.Context) {
	if s.started {
		return
	}
	s.started = true
	if s.cfg.Mode != domain.ModeDaily {
		s.cfg.Logger.Info("rotation disabled", "domain", "scheduler", "mode", s.cfg.Mode)
		close(s.doneCh)
		return
	}
	go s.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	if s.started {
		<-s.doneCh
	}
}

// MetricsSnapshot returns a copy of current metrics.
func (s *Scheduler) MetricsSnapshot() MetricsView {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	return MetricsView{
		Rotations:      s.metrics.Rotations,
		Skipped:        s.metrics.Skipped,
		Created:        s.metrics.Created,
		Deleted:        s.metrics.Deleted,
		Errors:         s.metrics.Errors,
		LastDurationMS: s.metrics.LastDurationMS,
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	log := s.cfg.Logger.With("domain", "scheduler")
	defer close(s.doneCh)
	defer s.inflight.Wait()

	trigger := s.cfg.Trigger
	var timer *time.Timer
	if trigger == nil {
		timer = time.NewTimer(UntilMidnight(s.cfg.Clock.Now()))
		defer timer.Stop()
		trigger = timer.C
		log.Info("rotation scheduled", "in", UntilMidnight(s.cfg.Clock.Now()).Round(time.Second).String())
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stop", "reason", "context_cancel")
			return
		case <-s.stopCh:
			log.Info("scheduler stop", "reason", "stop_signal")
			return
		case <-trigger:
			// Rotate in the background so the loop keeps draining triggers;
			// any that land mid-rotation are dropped by the guard.
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.Rotate(ctx)
			}()
			if timer != nil {
				timer.Reset(UntilMidnight(s.cfg.Clock.Now()))
			}
		}
	}
}

// UntilMidnight returns the time from now to the next 00:00 UTC.
func UntilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now)
}

// ensure creates id if it is missing. Errors are logged, never returned.
func (s *Scheduler) ensure(ctx context.Context, log *slog.Logger, id domain.PoolID) (created, errs int) {
	ok, err := s.store.Create(ctx, id)
	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		log.Error("create pool", "pool", id, "error", err)
		return 0, 1
	case err != nil:
		return 0, 0
	case ok:
		log.Info("pool created", "pool", id)
		return 1, 0
	default:
		log.Debug("pool present", "pool", id)
		return 0, 0
	}
}

// retain deletes the pools selected by the retention policy.
func (s *Scheduler) retain(ctx context.Context, log *slog.Logger) (deleted, errs int) {
	if s.cfg.Mode != domain.ModeDaily {
		return 0, 0
	}
	ids, err := s.store.List(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("list pools", "error", err)
			return 0, 1
		}
		return 0, 0
	}
	victims := retention.Select(s.cfg.Mode, s.cfg.DaysToKeep, ids)
	if len(victims) == 0 {
		log.Debug("retention pass", "stored", len(ids), "keep", retention.Effective(s.cfg.DaysToKeep), "deleted", 0)
		return 0, 0
	}
	log.Info("retention pass", "stored", len(ids), "keep", retention.Effective(s.cfg.DaysToKeep), "deleting", len(victims))
	for _, id := range victims {
		if err := s.store.Delete(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			log.Error("delete pool", "pool", id, "error", err)
			errs++
			continue
		}
		deleted++
		log.Info("pool deleted", "pool", id)
		if s.cfg.Evictor != nil {
			s.cfg.Evictor.Evicted(id)
		}
	}
	return deleted, errs
}

func (s *Scheduler) record(created, deleted, errs int) {
	s.metrics.add(created, deleted, errs)
	if created > 0 {
		s.collector.Inc(CounterPoolsCreated, int64(created))
	}
	if deleted > 0 {
		s.collector.Inc(CounterPoolsDeleted, int64(deleted))
	}
	if errs > 0 {
		s.collector.Inc(CounterRotationErrors, int64(errs))
	}
}
