package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AttributeKind discriminates the value stored in an AttributeValue.
type AttributeKind uint8

const (
	AttributeString AttributeKind = iota
	AttributeInt
	AttributeFloat
	AttributeBool
)

// AttributeValue is a span attribute value: string, int, float or bool.
type AttributeValue struct {
	Kind AttributeKind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
}

// StringValue builds a string attribute value.
func StringValue(s string) AttributeValue {
	return AttributeValue{Kind: AttributeString, Str: s}
}

// IntValue builds an integer attribute value.
func IntValue(i int64) AttributeValue {
	return AttributeValue{Kind: AttributeInt, Int: i}
}

// FloatValue builds a float attribute value.
func FloatValue(f float64) AttributeValue {
	return AttributeValue{Kind: AttributeFloat, Flt: f}
}

// BoolValue builds a boolean attribute value.
func BoolValue(b bool) AttributeValue {
	return AttributeValue{Kind: AttributeBool, Bool: b}
}

// Any returns the value as an untyped interface.
func (v AttributeValue) Any() any {
	switch v.Kind {
	case AttributeInt:
		return v.Int
	case AttributeFloat:
		return v.Flt
	case AttributeBool:
		return v.Bool
	default:
		return v.Str
	}
}

// MarshalJSON encodes the attribute as its raw JSON value.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes an attribute value, sniffing the JSON type.
// Integral numbers decode as int, other numbers as float.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = StringValue(val)
	case bool:
		*v = BoolValue(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			*v = IntValue(i)
			return nil
		}
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("unsupported numeric attribute value %q", val.String())
		}
		*v = FloatValue(f)
	default:
		return fmt.Errorf("unsupported attribute value type %T", raw)
	}
	return nil
}

// StatusCode discriminates span completion status.
type StatusCode uint8

const (
	StatusOk StatusCode = iota
	StatusError
)

// SpanStatus is the completion status of a span.
type SpanStatus struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// OkStatus returns a successful span status.
func OkStatus() SpanStatus {
	return SpanStatus{Code: StatusOk}
}

// ErrorStatus returns a failed span status with a message.
func ErrorStatus(message string) SpanStatus {
	return SpanStatus{Code: StatusError, Message: message}
}

// IsError reports whether the status records a failure.
func (s SpanStatus) IsError() bool {
	return s.Code == StatusError
}

// SpanEvent is a timestamped point event recorded within a span.
type SpanEvent struct {
	Name       string                    `json:"name"`
	Timestamp  Timestamp                 `json:"timestamp"`
	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
}

// Span is a single timed operation record. EndTime nil means the span is
// still open. ParentSpanID nil marks a root candidate.
type Span struct {
	TraceID      TraceID                   `json:"trace_id"`
	SpanID       SpanID                    `json:"span_id"`
	ParentSpanID *SpanID                   `json:"parent_span_id,omitempty"`
	Name         string                    `json:"name"`
	ServiceName  string                    `json:"service_name"`
	StartTime    Timestamp                 `json:"start_time"`
	EndTime      *Timestamp                `json:"end_time,omitempty"`
	Attributes   map[string]AttributeValue `json:"attributes,omitempty"`
	Events       []SpanEvent               `json:"events,omitempty"`
	Status       SpanStatus                `json:"status"`
}

// IsOpen reports whether the span has no end time yet.
func (s *Span) IsOpen() bool {
	return s.EndTime == nil
}

// IsRootCandidate reports whether the span declares no parent.
func (s *Span) IsRootCandidate() bool {
	return s.ParentSpanID == nil
}

// Duration returns the span duration in nanoseconds, or false while the
// span is open.
func (s *Span) Duration() (uint64, bool) {
	if s.EndTime == nil {
		return 0, false
	}
	if *s.EndTime < s.StartTime {
		return 0, true
	}
	return uint64(*s.EndTime) - uint64(s.StartTime), true
}

// Validate checks the structural invariants of an incoming span.
func (s *Span) Validate() error {
	if s.TraceID.IsZero() {
		return InvalidSpanError{Reason: "trace_id is zero"}
	}
	if s.SpanID.IsZero() {
		return InvalidSpanError{SpanID: s.SpanID.String(), Reason: "span_id is zero"}
	}
	if s.ParentSpanID != nil && s.ParentSpanID.IsZero() {
		return InvalidSpanError{SpanID: s.SpanID.String(), Reason: "parent_span_id is zero"}
	}
	if s.Name == "" {
		return InvalidSpanError{SpanID: s.SpanID.String(), Reason: "name is empty"}
	}
	if s.EndTime != nil && *s.EndTime < s.StartTime {
		return InvalidSpanError{SpanID: s.SpanID.String(), Reason: "end_time precedes start_time"}
	}
	return nil
}

// Clone returns a deep copy of the span. Stored traces hold clones so
// that callers cannot mutate a snapshot after ingest.
func (s *Span) Clone() Span {
	out := *s
	if s.ParentSpanID != nil {
		parent := *s.ParentSpanID
		out.ParentSpanID = &parent
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Attributes != nil {
		out.Attributes = make(map[string]AttributeValue, len(s.Attributes))
		for k, v := range s.Attributes {
			out.Attributes[k] = v
		}
	}
	if s.Events != nil {
		out.Events = make([]SpanEvent, len(s.Events))
		for i, ev := range s.Events {
			out.Events[i] = ev
			if ev.Attributes != nil {
				attrs := make(map[string]AttributeValue, len(ev.Attributes))
				for k, v := range ev.Attributes {
					attrs[k] = v
				}
				out.Events[i].Attributes = attrs
			}
		}
	}
	return out
}

// InvalidSpanError indicates a span that failed ingest validation.
type InvalidSpanError struct {
	SpanID string
	Reason string
}

func (e InvalidSpanError) Error() string {
	if e.SpanID == "" {
		return fmt.Sprintf("invalid span: %s", e.Reason)
	}
	return fmt.Sprintf("invalid span %s: %s", e.SpanID, e.Reason)
}
