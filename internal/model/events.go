package model

// EventType discriminates live trace events.
type EventType string

const (
	EventTraceStarted   EventType = "trace_started"
	EventSpanAdded      EventType = "span_added"
	EventTraceCompleted EventType = "trace_completed"
)

// TraceEvent is a live event delivered to subscribers. Exactly one of the
// payload fields matching Type is set.
type TraceEvent struct {
	Type    EventType  `json:"type"`
	TraceID TraceID    `json:"trace_id"`
	Started *Started   `json:"started,omitempty"`
	Span    *Span      `json:"span,omitempty"`
	Done    *Completed `json:"completed,omitempty"`
}

// Started carries the payload of a trace_started event.
type Started struct {
	RootSpanName string `json:"root_span_name"`
	ServiceName  string `json:"service_name"`
}

// Completed carries the payload of a trace_completed event.
type Completed struct {
	DurationNanos uint64 `json:"duration_nanos"`
	SpanCount     int    `json:"span_count"`
}

// TraceStartedEvent builds a trace_started event.
func TraceStartedEvent(id TraceID, rootSpanName, serviceName string) TraceEvent {
	return TraceEvent{
		Type:    EventTraceStarted,
		TraceID: id,
		Started: &Started{RootSpanName: rootSpanName, ServiceName: serviceName},
	}
}

// SpanAddedEvent builds a span_added event carrying the ingested span.
func SpanAddedEvent(span Span) TraceEvent {
	return TraceEvent{
		Type:    EventSpanAdded,
		TraceID: span.TraceID,
		Span:    &span,
	}
}

// TraceCompletedEvent builds a trace_completed event.
func TraceCompletedEvent(id TraceID, duration uint64, spanCount int) TraceEvent {
	return TraceEvent{
		Type:    EventTraceCompleted,
		TraceID: id,
		Done:    &Completed{DurationNanos: duration, SpanCount: spanCount},
	}
}

// IngestResult reports the outcome of a span batch ingest. Rejected spans
// never abort the batch.
type IngestResult struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}
