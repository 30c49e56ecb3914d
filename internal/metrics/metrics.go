// Package metrics provides a lightweight persistent metrics manager.
// It batches in-memory counter and summary observations and periodically
// flushes them to the SQLite database that also holds the pool ledger.
// Only monotonic counters and simple (count,sum,min,max) summaries are
// supported.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Config controls flush cadence and logging.
type Config struct {
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Summary aggregates observations of one named value.
type Summary struct {
	Count int64 `json:"count"`
	Sum   int64 `json:"sum"`
	Min   int64 `json:"min"`
	Max   int64 `json:"max"`
}

func (s *Summary) merge(o Summary) {
	if s.Count == 0 {
		*s = o
		return
	}
	if o.Count == 0 {
		return
	}
	s.Count += o.Count
	s.Sum += o.Sum
	s.Min = min(s.Min, o.Min)
	s.Max = max(s.Max, o.Max)
}

// Snapshot is a point-in-time view of persisted values plus pending deltas.
type Snapshot struct {
	Counters  map[string]int64   `json:"counters"`
	Summaries map[string]Summary `json:"summaries"`
}

// Manager aggregates metric events and flushes them. Inc and Observe never
// block; events beyond the buffer are dropped.
type Manager struct {
	cfg     Config
	db      *sql.DB
	events  chan event
	stop    chan struct{}
	done    chan struct{}
	started bool

	// in-memory deltas (protected by mu)
	mu        sync.Mutex
	counters  map[string]int64
	summaries map[string]*Summary
	dropped   int64
}

type eventKind int

const (
	eventInc eventKind = iota + 1
	eventObserve
)

type event struct {
	kind eventKind
	name string
	v    int64
}

// New creates a Manager. Call Start to begin background flushing.
func New(db *sql.DB, cfg Config) *Manager {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		db:        db,
		events:    make(chan event, 1024),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		counters:  make(map[string]int64),
		summaries: make(map[string]*Summary),
	}
}

// InitSchema ensures metrics tables exist.
func (m *Manager) InitSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS metrics_counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`,
		`CREATE TABLE IF NOT EXISTS metrics_summaries (
		name TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		sum INTEGER NOT NULL,
		min INTEGER NOT NULL,
		max INTEGER NOT NULL
	);`,
	}
	for _, q := range ddl {
		if _, err := m.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the background flush loop.
func (m *Manager) Start(ctx context.Context) {
	if m.started {
		return
	}
	m.started = true
	go m.loop(ctx)
}

// Stop signals the flush loop to exit, applies queued events, and performs
// a final flush.
func (m *Manager) Stop(ctx context.Context) error {
	if m.started {
		close(m.stop)
		<-m.done
		m.started = false
	}
	m.drain()
	return m.flush(ctx)
}

// Inc increments a counter by delta (>=1).
func (m *Manager) Inc(name string, delta int64) {
	if delta <= 0 {
		return
	}
	m.send(event{kind: eventInc, name: name, v: delta})
}

// Observe records a summary observation.
func (m *Manager) Observe(name string, value int64) {
	m.send(event{kind: eventObserve, name: name, v: value})
}

func (m *Manager) send(ev event) {
	select {
	case m.events <- ev:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
	}
}

func (m *Manager) loop(ctx context.Context) {
	log := m.cfg.Logger.With("domain", "metrics")
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer func() {
		ticker.Stop()
		close(m.done)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("metrics stop", "reason", "context_cancel")
			return
		case <-m.stop:
			log.Info("metrics stop", "reason", "stop_signal")
			return
		case ev := <-m.events:
			m.apply(ev)
		case <-ticker.C:
			if err := m.flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("flush", "error", err)
			}
		}
	}
}

// drain applies every queued event without blocking.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events:
			m.apply(ev)
		default:
			return
		}
	}
}

func (m *Manager) apply(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ev.kind {
	case eventInc:
		m.counters[ev.name] += ev.v
	case eventObserve:
		agg := m.summaries[ev.name]
		if agg == nil {
			agg = &Summary{}
			m.summaries[ev.name] = agg
		}
		agg.merge(Summary{Count: 1, Sum: ev.v, Min: ev.v, Max: ev.v})
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (m *Manager) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Snapshot returns persisted values with in-memory deltas layered on top.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Counters: make(map[string]int64), Summaries: make(map[string]Summary)}
	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metrics_counters`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var n string
		var v int64
		if err := rows.Scan(&n, &v); err != nil {
			return Snapshot{}, err
		}
		snap.Counters[n] = v
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	srows, err := m.db.QueryContext(ctx, `SELECT name, count, sum, min, max FROM metrics_summaries`)
	if err != nil {
		return Snapshot{}, err
	}
	defer srows.Close()
	for srows.Next() {
		var n string
		var s Summary
		if err := srows.Scan(&n, &s.Count, &s.Sum, &s.Min, &s.Max); err != nil {
			return Snapshot{}, err
		}
		snap.Summaries[n] = s
	}
	if err := srows.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	for n, v := range m.counters {
		snap.Counters[n] += v
	}
	for n, agg := range m.summaries {
		cur := snap.Summaries[n]
		cur.merge(*agg)
		snap.Summaries[n] = cur
	}
	m.mu.Unlock()
	return snap, nil
}

// flush writes in-memory deltas to SQLite in a single transaction and
// resets them. Deltas are restored if the transaction fails.
func (m *Manager) flush(ctx context.Context) error {
	m.mu.Lock()
	if len(m.counters) == 0 && len(m.summaries) == 0 {
		m.mu.Unlock()
		return nil
	}
	counters, summaries := m.counters, m.summaries
	m.counters = make(map[string]int64)
	m.summaries = make(map[string]*Summary)
	m.mu.Unlock()

	if err := m.write(ctx, counters, summaries); err != nil {
		m.mu.Lock()
		for n, v := range counters {
			m.counters[n] += v
		}
		for n, agg := range summaries {
			cur := m.summaries[n]
			if cur == nil {
				m.summaries[n] = agg
				continue
			}
			cur.merge(*agg)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) write(ctx context.Context, counters map[string]int64, summaries map[string]*Summary) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for name, delta := range counters {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_counters(name,value) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`, name, delta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	for name, agg := range summaries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metrics_summaries(name,count,sum,min,max) VALUES(?,?,?,?,?) ON CONFLICT(name) DO UPDATE SET count = metrics_summaries.count + excluded.count, sum = metrics_summaries.sum + excluded.sum, min = MIN(metrics_summaries.min, excluded.min), max = MAX(metrics_summaries.max, excluded.max)`, name, agg.Count, agg.Sum, agg.Min, agg.Max); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
