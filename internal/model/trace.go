package model

import (
	"encoding/json"
	"fmt"
)

// TraceType tags a trace with the producing framework's conventions.
// Kind is open-ended so new frameworks can be recognized without touching
// this type.
type TraceType struct {
	// Mixed is set when markers of two or more distinct frameworks
	// appear within the same trace.
	Mixed bool
	// Kind is the framework kind, empty for generic traces.
	Kind string
}

// TypeGeneric is the classification of a trace with no framework markers.
var TypeGeneric = TraceType{}

// TypeMixed is the classification of a trace carrying markers of more
// than one framework.
var TypeMixed = TraceType{Mixed: true}

// FrameworkType builds a framework classification for the given kind.
func FrameworkType(kind string) TraceType {
	return TraceType{Kind: kind}
}

// IsGeneric reports whether no framework matched.
func (t TraceType) IsGeneric() bool {
	return !t.Mixed && t.Kind == ""
}

// String renders the type for summaries and the HTTP API.
func (t TraceType) String() string {
	switch {
	case t.Mixed:
		return "mixed"
	case t.Kind != "":
		return t.Kind
	default:
		return "generic"
	}
}

// MarshalJSON encodes the type as its string form.
func (t TraceType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes the string form.
func (t *TraceType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "generic", "":
		*t = TypeGeneric
	case "mixed":
		*t = TypeMixed
	default:
		*t = FrameworkType(s)
	}
	return nil
}

// Trace is an assembled, immutable snapshot of all spans sharing a trace
// id. The store replaces the whole snapshot on every write; readers must
// never mutate one in place.
type Trace struct {
	TraceID    TraceID `json:"trace_id"`
	RootSpanID SpanID  `json:"root_span_id"`
	// Spans are ordered by start time, ties broken by span id.
	Spans     []Span    `json:"spans"`
	StartTime Timestamp `json:"start_time"`
	// EndTime is nil while any span in the trace is still open.
	EndTime *Timestamp `json:"end_time,omitempty"`
	Type    TraceType  `json:"trace_type"`

	children map[SpanID][]int
}

// SpanCount returns the number of spans in the snapshot.
func (t *Trace) SpanCount() int {
	return len(t.Spans)
}

// ErrorCount returns the number of spans with error status.
func (t *Trace) ErrorCount() int {
	n := 0
	for i := range t.Spans {
		if t.Spans[i].Status.IsError() {
			n++
		}
	}
	return n
}

// Duration returns the trace duration in nanoseconds, or false while any
// span is still open.
func (t *Trace) Duration() (uint64, bool) {
	if t.EndTime == nil {
		return 0, false
	}
	return uint64(*t.EndTime) - uint64(t.StartTime), true
}

// Completed reports whether every span in the trace has ended.
func (t *Trace) Completed() bool {
	return t.EndTime != nil
}

// Root returns the root span of the trace.
func (t *Trace) Root() *Span {
	for i := range t.Spans {
		if t.Spans[i].SpanID == t.RootSpanID {
			return &t.Spans[i]
		}
	}
	return nil
}

// Span returns the span with the given id, or nil.
func (t *Trace) Span(id SpanID) *Span {
	for i := range t.Spans {
		if t.Spans[i].SpanID == id {
			return &t.Spans[i]
		}
	}
	return nil
}

// SetChildrenIndex installs the parent-to-children index built during
// assembly. Indices refer into Spans.
func (t *Trace) SetChildrenIndex(idx map[SpanID][]int) {
	t.children = idx
}

// ChildrenOf returns the spans whose parent is the given span id, in span
// order. The index is built once per assembly pass, not per call.
func (t *Trace) ChildrenOf(id SpanID) []*Span {
	indices := t.children[id]
	if len(indices) == 0 {
		return nil
	}
	out := make([]*Span, 0, len(indices))
	for _, i := range indices {
		out = append(out, &t.Spans[i])
	}
	return out
}

// Summary projects the trace for listing.
func (t *Trace) Summary() TraceSummary {
	s := TraceSummary{
		TraceID:    t.TraceID,
		StartTime:  t.StartTime,
		SpanCount:  t.SpanCount(),
		ErrorCount: t.ErrorCount(),
		TraceType:  t.Type,
	}
	if root := t.Root(); root != nil {
		s.RootSpanName = root.Name
		s.ServiceName = root.ServiceName
	}
	if d, ok := t.Duration(); ok {
		s.Duration = &d
	}
	return s
}

// TraceSummary is the listing projection of a trace.
type TraceSummary struct {
	TraceID      TraceID   `json:"trace_id"`
	RootSpanName string    `json:"root_span_name"`
	ServiceName  string    `json:"service_name"`
	StartTime    Timestamp `json:"start_time"`
	// Duration is nil while the trace has open spans.
	Duration   *uint64   `json:"duration_nanos,omitempty"`
	SpanCount  int       `json:"span_count"`
	ErrorCount int       `json:"error_count"`
	TraceType  TraceType `json:"trace_type"`
}

// TraceFilter selects traces for listing. Nil fields are unset.
type TraceFilter struct {
	// ServiceName filters by exact root service name.
	ServiceName string `json:"service_name,omitempty"`
	// MinDuration and MaxDuration bound the trace duration inclusively,
	// in nanoseconds. Traces without a duration are excluded from range
	// filters.
	MinDuration *uint64 `json:"min_duration_nanos,omitempty"`
	MaxDuration *uint64 `json:"max_duration_nanos,omitempty"`
	// HasErrors matches traces whose error_count > 0 equals the value.
	HasErrors *bool `json:"has_errors,omitempty"`
	// Limit caps the result count. Zero means the default limit.
	Limit int `json:"limit,omitempty"`
}

// Validate rejects impossible filter combinations.
func (f *TraceFilter) Validate() error {
	if f.Limit < 0 {
		return InvalidFilterError{Reason: "limit cannot be negative"}
	}
	if f.MinDuration != nil && f.MaxDuration != nil && *f.MinDuration > *f.MaxDuration {
		return InvalidFilterError{Reason: "min_duration_nanos exceeds max_duration_nanos"}
	}
	return nil
}

// InvalidFilterError indicates a malformed trace filter.
type InvalidFilterError struct {
	Reason string
}

func (e InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid trace filter: %s", e.Reason)
}
