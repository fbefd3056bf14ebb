package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTraceID(t *testing.T) TraceID {
	t.Helper()
	id, err := ParseTraceID("a1b2c3d4e5f6789012345678901234ab")
	require.NoError(t, err)
	return id
}

func testSpanID(t *testing.T, s string) SpanID {
	t.Helper()
	id, err := ParseSpanID(s)
	require.NoError(t, err)
	return id
}

func validSpan(t *testing.T) Span {
	t.Helper()
	end := Timestamp(2000)
	return Span{
		TraceID:     testTraceID(t),
		SpanID:      testSpanID(t, "1234567890abcdef"),
		Name:        "GET /api/users",
		ServiceName: "api-gateway",
		StartTime:   1000,
		EndTime:     &end,
		Status:      OkStatus(),
	}
}

func TestSpanValidate(t *testing.T) {
	t.Run("valid span", func(t *testing.T) {
		span := validSpan(t)
		assert.NoError(t, span.Validate())
	})

	t.Run("open span is valid", func(t *testing.T) {
		span := validSpan(t)
		span.EndTime = nil
		assert.NoError(t, span.Validate())
	})

	t.Run("zero trace id", func(t *testing.T) {
		span := validSpan(t)
		span.TraceID = TraceID{}
		assert.Error(t, span.Validate())
	})

	t.Run("zero span id", func(t *testing.T) {
		span := validSpan(t)
		span.SpanID = SpanID{}
		assert.Error(t, span.Validate())
	})

	t.Run("zero parent id", func(t *testing.T) {
		span := validSpan(t)
		zero := SpanID{}
		span.ParentSpanID = &zero
		assert.Error(t, span.Validate())
	})

	t.Run("empty name", func(t *testing.T) {
		span := validSpan(t)
		span.Name = ""
		assert.Error(t, span.Validate())
	})

	t.Run("end before start", func(t *testing.T) {
		span := validSpan(t)
		end := Timestamp(500)
		span.EndTime = &end
		assert.Error(t, span.Validate())
	})
}

func TestSpanDuration(t *testing.T) {
	span := validSpan(t)
	d, ok := span.Duration()
	assert.True(t, ok)
	assert.Equal(t, uint64(1000), d)

	span.EndTime = nil
	_, ok = span.Duration()
	assert.False(t, ok)
}

func TestSpanClone(t *testing.T) {
	span := validSpan(t)
	parent := testSpanID(t, "abcdef1234567890")
	span.ParentSpanID = &parent
	span.Attributes = map[string]AttributeValue{
		"http.method": StringValue("GET"),
	}
	span.Events = []SpanEvent{{
		Name:      "checkpoint",
		Timestamp: 1500,
		Attributes: map[string]AttributeValue{
			"processed": IntValue(10),
		},
	}}

	clone := span.Clone()

	// Mutating the clone must not leak into the original.
	*clone.EndTime = 9999
	*clone.ParentSpanID = testSpanID(t, "1111222233334444")
	clone.Attributes["http.method"] = StringValue("POST")
	clone.Events[0].Attributes["processed"] = IntValue(99)

	assert.Equal(t, Timestamp(2000), *span.EndTime)
	assert.Equal(t, parent, *span.ParentSpanID)
	assert.Equal(t, StringValue("GET"), span.Attributes["http.method"])
	assert.Equal(t, IntValue(10), span.Events[0].Attributes["processed"])
}

func TestAttributeValueJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AttributeValue
	}{
		{"string", `"hello"`, StringValue("hello")},
		{"int", `42`, IntValue(42)},
		{"negative int", `-7`, IntValue(-7)},
		{"float", `3.5`, FloatValue(3.5)},
		{"bool", `true`, BoolValue(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v AttributeValue
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.want, v)

			data, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.raw, string(data))
		})
	}

	var v AttributeValue
	assert.Error(t, json.Unmarshal([]byte(`["no","arrays"]`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"no":"objects"}`), &v))
}

func TestSpanStatus(t *testing.T) {
	assert.False(t, OkStatus().IsError())

	errStatus := ErrorStatus("boom")
	assert.True(t, errStatus.IsError())
	assert.Equal(t, "boom", errStatus.Message)
}
