// Package store is the concurrent, TTL-bounded home for spans and
// assembled traces. The table is sharded and every trace entry carries
// its own lock, so writes to the same trace id are linearizable while
// unrelated traces never contend.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/assembler"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/metrics"
	"github.com/hindsight/hub/internal/model"
)

const shardCount = 64

// ClassifyFunc tags an assembled trace. It must be a pure function of
// the snapshot.
type ClassifyFunc func(*model.Trace) model.TraceType

// Publisher receives trace events emitted by the ingest path. Publish
// must never block.
type Publisher interface {
	Publish(model.TraceEvent)
}

// Config holds store configuration.
type Config struct {
	// TTL is the maximum idle duration a trace is retained after its
	// last write.
	TTL time.Duration
	// SweepInterval is the fixed interval of the background TTL sweep.
	SweepInterval time.Duration
}

// entry is the mutable per-trace state. Its mutex makes same-trace
// upserts linearizable; the assembled trace is replaced wholesale so
// readers always see an immutable snapshot.
type entry struct {
	mu             sync.Mutex
	spans          map[model.SpanID]*model.Span
	trace          *model.Trace
	lastWrite      time.Time
	started        bool
	completedFired bool

	// gone is set by the sweeper under mu before the entry leaves the
	// shard map. A writer holding a stale pointer must re-fetch.
	gone bool
}

type shard struct {
	mu      sync.RWMutex
	entries map[model.TraceID]*entry
}

// Store is the TTL-bounded trace cache.
type Store struct {
	shards   [shardCount]shard
	cfg      Config
	classify ClassifyFunc
	events   Publisher
	metrics  *metrics.TraceMetrics
	log      zerolog.Logger

	// now is replaceable in tests for deterministic TTL expiry.
	now func() time.Time

	mu      sync.RWMutex
	ready   bool
	stopCh  chan struct{}
	stopped chan struct{}
}

// New creates a trace store. classify may be nil (all traces generic),
// events may be nil (no live delivery), m may be nil (unmetered).
func New(cfg Config, classify ClassifyFunc, events Publisher, m *metrics.TraceMetrics) *Store {
	s := &Store{
		cfg:      cfg,
		classify: classify,
		events:   events,
		metrics:  m,
		log:      logger.WithComponent("store"),
		now:      time.Now,
	}
	for i := range s.shards {
		s.shards[i].entries = make(map[model.TraceID]*entry)
	}
	return s
}

// Start launches the background TTL sweeper.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.runSweeper(ctx, s.stopCh, s.stopped)

	s.ready = true
	s.log.Info().
		Dur("ttl", s.cfg.TTL).
		Dur("sweep_interval", s.cfg.SweepInterval).
		Msg("Trace store started")
	return nil
}

// Stop stops the sweeper. Stored traces remain readable until process
// exit; nothing is flushed because nothing is durable.
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	close(s.stopCh)
	select {
	case <-s.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.ready = false
	s.log.Info().Msg("Trace store stopped")
	return nil
}

// Ready returns true if the store is ready.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) shardFor(id model.TraceID) *shard {
	// FNV-1a over the raw id bytes, same hashing approach as the
	// resource path hashing elsewhere.
	var h uint32 = 2166136261
	for _, b := range id {
		h ^= uint32(b)
		h *= 16777619
	}
	return &s.shards[h%shardCount]
}

func (s *Store) getOrCreateEntry(id model.TraceID) *entry {
	sh := s.shardFor(id)

	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	if ok {
		return e
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok = sh.entries[id]; ok {
		return e
	}
	// lastWrite starts at now, not zero, so an entry created just before
	// its first span is applied never looks idle to the sweeper.
	e = &entry{
		spans:     make(map[model.SpanID]*model.Span),
		lastWrite: s.now(),
	}
	sh.entries[id] = e
	return e
}

// Ingest upserts a batch of spans. Spans failing validation are counted
// as rejected and never abort the batch. Each accepted span triggers a
// synchronous re-assembly and re-classification of its trace.
func (s *Store) Ingest(spans []model.Span) model.IngestResult {
	var result model.IngestResult
	for i := range spans {
		span := &spans[i]
		if err := span.Validate(); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		s.upsert(span)
		result.Accepted++
	}
	return result
}

// upsert applies one span and emits any resulting events after the
// entry lock is released. When the fetched entry was tombstoned by a
// concurrent sweep, the write is retried against a fresh entry so an
// accepted span can never land in an orphan.
func (s *Store) upsert(span *model.Span) {
	for {
		e := s.getOrCreateEntry(span.TraceID)
		pending, ok := s.applySpan(e, span)
		if !ok {
			continue
		}
		if s.events != nil {
			for _, ev := range pending {
				s.events.Publish(ev)
			}
		}
		return
	}
}

// applySpan writes the span into the entry under its lock. It returns
// false without writing when the entry has already been evicted.
func (s *Store) applySpan(e *entry, span *model.Span) ([]model.TraceEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gone {
		return nil, false
	}

	var pending []model.TraceEvent

	clone := span.Clone()
	// Idempotent on (trace_id, span_id): re-ingest overwrites.
	e.spans[span.SpanID] = &clone
	e.lastWrite = s.now()

	all := make([]*model.Span, 0, len(e.spans))
	for _, sp := range e.spans {
		all = append(all, sp)
	}
	res := assembler.Assemble(span.TraceID, all)
	if res.Trace != nil {
		if s.classify != nil {
			res.Trace.Type = s.classify(res.Trace)
		}
		e.trace = res.Trace

		if !e.started {
			e.started = true
			root := res.Trace.Root()
			pending = append(pending, model.TraceStartedEvent(span.TraceID, root.Name, root.ServiceName))
		}
	}
	pending = append(pending, model.SpanAddedEvent(clone))
	if res.Trace != nil && res.Trace.Completed() && !e.completedFired {
		e.completedFired = true
		d, _ := res.Trace.Duration()
		pending = append(pending, model.TraceCompletedEvent(span.TraceID, d, res.Trace.SpanCount()))
		s.metrics.RecordCompletion()
	}
	return pending, true
}

// GetTrace returns the assembled snapshot for a trace id. It returns
// false when the trace was never ingested, has expired, or has no root
// yet (incomplete assembly is not exposed to readers).
func (s *Store) GetTrace(id model.TraceID) (*model.Trace, bool) {
	sh := s.shardFor(id)

	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	trace := e.trace
	expired := s.expiredLocked(e)
	e.mu.Unlock()

	// Expired but not yet swept: treat as absent.
	if expired || trace == nil {
		return nil, false
	}
	return trace, true
}

// Snapshot returns the assembled traces currently resident, taken shard
// by shard so a trace cannot appear twice or be skipped by a concurrent
// sweep. Incomplete and expired entries are excluded. The result is
// ordered by trace id for determinism.
func (s *Store) Snapshot() []*model.Trace {
	var out []*model.Trace
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		entries := make([]*entry, 0, len(sh.entries))
		for _, e := range sh.entries {
			entries = append(entries, e)
		}
		sh.mu.RUnlock()

		for _, e := range entries {
			e.mu.Lock()
			if e.trace != nil && !s.expiredLocked(e) {
				out = append(out, e.trace)
			}
			e.mu.Unlock()
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TraceID.Less(out[j].TraceID)
	})
	return out
}

// Len returns the number of resident trace entries, including incomplete
// ones.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) expiredLocked(e *entry) bool {
	if s.cfg.TTL <= 0 {
		return false
	}
	return s.now().Sub(e.lastWrite) >= s.cfg.TTL
}
