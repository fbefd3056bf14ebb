// Package assembler turns an unordered set of spans sharing a trace id
// into a rooted trace snapshot. Assembly tolerates out-of-order and
// partial arrival: while the root span has not arrived the result is
// "incomplete", which is an expected transient state, not an error.
package assembler

import (
	"sort"

	"github.com/hindsight/hub/internal/model"
)

// Result is the outcome of one assembly pass.
type Result struct {
	// Trace is the assembled snapshot, nil when Incomplete.
	Trace *model.Trace
	// Incomplete is set when no root span is present yet. The caller
	// keeps the spans cached and retries on the next ingest.
	Incomplete bool
}

// Assemble builds a trace snapshot from the spans known for one trace id.
// The input spans are not retained; the snapshot owns copies.
//
// Root selection: the first parentless span in (start time, span id)
// order is the root. Additional parentless spans, and spans whose parent
// is absent from the set, stay attached to the trace as dangling orphans
// with no parent edge in the children index.
func Assemble(traceID model.TraceID, spans []*model.Span) Result {
	if len(spans) == 0 {
		return Result{Incomplete: true}
	}

	ordered := make([]model.Span, 0, len(spans))
	for _, s := range spans {
		ordered = append(ordered, s.Clone())
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].StartTime != ordered[j].StartTime {
			return ordered[i].StartTime < ordered[j].StartTime
		}
		return ordered[i].SpanID.Less(ordered[j].SpanID)
	})

	rootIdx := -1
	for i := range ordered {
		if ordered[i].IsRootCandidate() {
			rootIdx = i
			break
		}
	}
	if rootIdx < 0 {
		return Result{Incomplete: true}
	}

	present := make(map[model.SpanID]struct{}, len(ordered))
	for i := range ordered {
		present[ordered[i].SpanID] = struct{}{}
	}

	// Children index, built once per pass. Orphans (declared parent not
	// in the set) get no edge; they are reachable only through Spans.
	children := make(map[model.SpanID][]int)
	for i := range ordered {
		parent := ordered[i].ParentSpanID
		if parent == nil {
			continue
		}
		if _, ok := present[*parent]; !ok {
			continue
		}
		children[*parent] = append(children[*parent], i)
	}

	var end *model.Timestamp
	open := false
	for i := range ordered {
		if ordered[i].EndTime == nil {
			open = true
			break
		}
		if end == nil || *ordered[i].EndTime > *end {
			e := *ordered[i].EndTime
			end = &e
		}
	}
	if open {
		end = nil
	}

	trace := &model.Trace{
		TraceID:    traceID,
		RootSpanID: ordered[rootIdx].SpanID,
		Spans:      ordered,
		StartTime:  ordered[rootIdx].StartTime,
		EndTime:    end,
	}
	trace.SetChildrenIndex(children)
	return Result{Trace: trace}
}
