// Package query serves filtered, bounded trace summary views over a
// point-in-time snapshot of the store. Snapshot-then-filter keeps a
// concurrent eviction from skipping or duplicating a trace mid-scan.
package query

import (
	"sort"

	"github.com/hindsight/hub/internal/model"
)

const (
	// DefaultLimit applies when the filter does not set one.
	DefaultLimit = 100
	// MaxLimit is enforced even when the caller asks for more.
	MaxLimit = 1000
)

// Engine evaluates trace filters. It is stateless; all state lives in
// the snapshot handed to List.
type Engine struct {
	defaultLimit int
	maxLimit     int
}

// New creates a query engine with the standard limits.
func New() *Engine {
	return &Engine{defaultLimit: DefaultLimit, maxLimit: MaxLimit}
}

// List filters the snapshot and returns summaries ordered newest start
// time first, ties broken by trace id. The filter must already be
// validated.
func (e *Engine) List(snapshot []*model.Trace, filter model.TraceFilter) []model.TraceSummary {
	limit := filter.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	matched := make([]model.TraceSummary, 0, len(snapshot))
	for _, trace := range snapshot {
		summary := trace.Summary()
		if !e.matches(&summary, &filter) {
			continue
		}
		matched = append(matched, summary)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartTime != matched[j].StartTime {
			return matched[i].StartTime > matched[j].StartTime
		}
		return matched[i].TraceID.Less(matched[j].TraceID)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func (e *Engine) matches(s *model.TraceSummary, f *model.TraceFilter) bool {
	if f.ServiceName != "" && s.ServiceName != f.ServiceName {
		return false
	}
	if f.MinDuration != nil || f.MaxDuration != nil {
		// A trace with open spans has no duration and is excluded
		// from range filters.
		if s.Duration == nil {
			return false
		}
		if f.MinDuration != nil && *s.Duration < *f.MinDuration {
			return false
		}
		if f.MaxDuration != nil && *s.Duration > *f.MaxDuration {
			return false
		}
	}
	if f.HasErrors != nil && (s.ErrorCount > 0) != *f.HasErrors {
		return false
	}
	return true
}
