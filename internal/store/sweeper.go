package store

import (
	"context"
	"time"

	"github.com/hindsight/hub/internal/model"
)

const (
	// DefaultTTL is the default idle retention for traces.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is the default interval for the TTL sweeper.
	DefaultSweepInterval = 10 * time.Second
)

// runSweeper runs the background TTL sweep goroutine. It runs on a fixed
// interval independent of request traffic.
func (s *Store) runSweeper(ctx context.Context, stopCh <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("TTL sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("TTL sweeper stopped due to context cancellation")
			return
		case <-stopCh:
			s.log.Info().Msg("TTL sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep removes every trace whose idle time has reached the TTL. It
// works shard by shard so ingestion on other shards is never blocked,
// and rechecks the last-write time under the shard write lock so a trace
// written mid-sweep is not lost.
func (s *Store) Sweep() int {
	if s.cfg.TTL <= 0 {
		return 0
	}

	start := time.Now()
	evicted := 0

	for i := range s.shards {
		sh := &s.shards[i]

		sh.mu.RLock()
		var candidates []traceEntry
		for id, e := range sh.entries {
			candidates = append(candidates, traceEntry{id: id, e: e})
		}
		sh.mu.RUnlock()

		var expired []traceEntry
		for _, c := range candidates {
			c.e.mu.Lock()
			if s.expiredLocked(c.e) {
				expired = append(expired, c)
			}
			c.e.mu.Unlock()
		}
		if len(expired) == 0 {
			continue
		}

		sh.mu.Lock()
		for _, c := range expired {
			// The entry may have been rewritten since the check. The
			// tombstone is set under the entry lock so a writer holding
			// a stale pointer re-fetches instead of writing into the
			// removed entry.
			c.e.mu.Lock()
			stale := s.expiredLocked(c.e)
			if stale {
				c.e.gone = true
			}
			c.e.mu.Unlock()
			if stale {
				delete(sh.entries, c.id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}

	s.metrics.RecordEviction(evicted, time.Since(start))
	s.metrics.SetStoredTraces(s.Len())

	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Msg("TTL sweep completed")
	}
	return evicted
}

type traceEntry struct {
	id model.TraceID
	e  *entry
}
