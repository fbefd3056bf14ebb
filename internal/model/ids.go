package model

import (
	"encoding/hex"
	"fmt"
	"time"
)

// TraceID is a 128-bit trace identifier. The zero value is invalid.
type TraceID [16]byte

// SpanID is a 64-bit span identifier, unique within its trace. The zero
// value is invalid.
type SpanID [8]byte

// Timestamp is a producer-supplied wall-clock time in nanoseconds since
// the UNIX epoch. The hub never corrects clock skew.
type Timestamp uint64

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp(time.Now().UnixNano())
}

// Time converts the timestamp to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// ParseTraceID parses a 32-character hex string into a TraceID.
func ParseTraceID(s string) (TraceID, error) {
	var id TraceID
	if len(s) != 32 {
		return id, InvalidIDError{Kind: "trace", Value: s, Reason: "must be 32 hex characters"}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, InvalidIDError{Kind: "trace", Value: s, Reason: "not valid hex"}
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, InvalidIDError{Kind: "trace", Value: s, Reason: "all-zero identifier"}
	}
	return id, nil
}

// ParseSpanID parses a 16-character hex string into a SpanID.
func ParseSpanID(s string) (SpanID, error) {
	var id SpanID
	if len(s) != 16 {
		return id, InvalidIDError{Kind: "span", Value: s, Reason: "must be 16 hex characters"}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, InvalidIDError{Kind: "span", Value: s, Reason: "not valid hex"}
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, InvalidIDError{Kind: "span", Value: s, Reason: "all-zero identifier"}
	}
	return id, nil
}

// TraceIDFromBytes builds a TraceID from a raw 16-byte slice.
func TraceIDFromBytes(b []byte) (TraceID, error) {
	var id TraceID
	if len(b) != 16 {
		return id, InvalidIDError{Kind: "trace", Value: hex.EncodeToString(b), Reason: "must be 16 bytes"}
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, InvalidIDError{Kind: "trace", Value: "", Reason: "all-zero identifier"}
	}
	return id, nil
}

// SpanIDFromBytes builds a SpanID from a raw 8-byte slice.
func SpanIDFromBytes(b []byte) (SpanID, error) {
	var id SpanID
	if len(b) != 8 {
		return id, InvalidIDError{Kind: "span", Value: hex.EncodeToString(b), Reason: "must be 8 bytes"}
	}
	copy(id[:], b)
	if id.IsZero() {
		return id, InvalidIDError{Kind: "span", Value: "", Reason: "all-zero identifier"}
	}
	return id, nil
}

// IsZero reports whether the identifier is all zero bytes.
func (id TraceID) IsZero() bool {
	return id == TraceID{}
}

// String returns the lowercase hex encoding of the identifier.
func (id TraceID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is all zero bytes.
func (id SpanID) IsZero() bool {
	return id == SpanID{}
}

// String returns the lowercase hex encoding of the identifier.
func (id SpanID) String() string {
	return hex.EncodeToString(id[:])
}

// Less orders trace ids by raw bytes, used for deterministic tie-breaks.
func (id TraceID) Less(other TraceID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// Less orders span ids by raw bytes, used for deterministic tie-breaks.
func (id SpanID) Less(other SpanID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// MarshalJSON encodes the id as a hex string.
func (id TraceID) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", id.String())), nil
}

// UnmarshalJSON decodes the id from a hex string.
func (id *TraceID) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	parsed, err := ParseTraceID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalJSON encodes the id as a hex string.
func (id SpanID) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", id.String())), nil
}

// UnmarshalJSON decodes the id from a hex string.
func (id *SpanID) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	parsed, err := ParseSpanID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func unquote(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", fmt.Errorf("identifier must be a JSON string")
	}
	return string(data[1 : len(data)-1]), nil
}

// InvalidIDError indicates a malformed trace or span identifier.
type InvalidIDError struct {
	Kind   string
	Value  string
	Reason string
}

func (e InvalidIDError) Error() string {
	return fmt.Sprintf("invalid %s id %q: %s", e.Kind, e.Value, e.Reason)
}
