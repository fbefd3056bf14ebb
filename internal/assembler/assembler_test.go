package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/hub/internal/model"
)

func traceID(t *testing.T) model.TraceID {
	t.Helper()
	id, err := model.ParseTraceID("a1b2c3d4e5f6789012345678901234ab")
	require.NoError(t, err)
	return id
}

func spanID(t *testing.T, s string) model.SpanID {
	t.Helper()
	id, err := model.ParseSpanID(s)
	require.NoError(t, err)
	return id
}

func makeSpan(t *testing.T, id string, parent string, start, end uint64) *model.Span {
	t.Helper()
	span := &model.Span{
		TraceID:     traceID(t),
		SpanID:      spanID(t, id),
		Name:        "op-" + id,
		ServiceName: "svc",
		StartTime:   model.Timestamp(start),
		Status:      model.OkStatus(),
	}
	if parent != "" {
		p := spanID(t, parent)
		span.ParentSpanID = &p
	}
	if end > 0 {
		e := model.Timestamp(end)
		span.EndTime = &e
	}
	return span
}

func TestAssembleEmpty(t *testing.T) {
	res := Assemble(traceID(t), nil)
	assert.True(t, res.Incomplete)
	assert.Nil(t, res.Trace)
}

func TestAssembleNoRoot(t *testing.T) {
	// Children whose root has not arrived yet: transiently incomplete.
	spans := []*model.Span{
		makeSpan(t, "2222222222222222", "1111111111111111", 100, 200),
		makeSpan(t, "3333333333333333", "1111111111111111", 150, 250),
	}
	res := Assemble(traceID(t), spans)
	assert.True(t, res.Incomplete)
	assert.Nil(t, res.Trace)
}

func TestAssembleBasic(t *testing.T) {
	root := makeSpan(t, "1111111111111111", "", 100, 500)
	child := makeSpan(t, "2222222222222222", "1111111111111111", 150, 300)

	res := Assemble(traceID(t), []*model.Span{child, root})
	require.False(t, res.Incomplete)
	require.NotNil(t, res.Trace)

	trace := res.Trace
	assert.Equal(t, root.SpanID, trace.RootSpanID)
	assert.Equal(t, model.Timestamp(100), trace.StartTime)
	require.NotNil(t, trace.EndTime)
	assert.Equal(t, model.Timestamp(500), *trace.EndTime)

	children := trace.ChildrenOf(root.SpanID)
	require.Len(t, children, 1)
	assert.Equal(t, child.SpanID, children[0].SpanID)
}

func TestAssembleOrderIndependent(t *testing.T) {
	a := makeSpan(t, "1111111111111111", "", 100, 500)
	b := makeSpan(t, "2222222222222222", "1111111111111111", 150, 300)
	c := makeSpan(t, "3333333333333333", "2222222222222222", 200, 280)

	permutations := [][]*model.Span{
		{a, b, c},
		{c, b, a},
		{b, a, c},
		{c, a, b},
	}

	var reference *model.Trace
	for _, perm := range permutations {
		res := Assemble(traceID(t), perm)
		require.False(t, res.Incomplete)
		if reference == nil {
			reference = res.Trace
			continue
		}
		assert.Equal(t, reference.RootSpanID, res.Trace.RootSpanID)
		assert.Equal(t, reference.StartTime, res.Trace.StartTime)
		require.Equal(t, len(reference.Spans), len(res.Trace.Spans))
		for i := range reference.Spans {
			assert.Equal(t, reference.Spans[i].SpanID, res.Trace.Spans[i].SpanID)
		}
	}
}

func TestAssembleRootTieBreak(t *testing.T) {
	// Two parentless spans with the same start: the lower span id wins.
	first := makeSpan(t, "1111111111111111", "", 100, 400)
	second := makeSpan(t, "0fffffffffffffff", "", 100, 300)

	res := Assemble(traceID(t), []*model.Span{first, second})
	require.False(t, res.Incomplete)
	assert.Equal(t, second.SpanID, res.Trace.RootSpanID)
	assert.Equal(t, 2, res.Trace.SpanCount())
}

func TestAssembleOrphan(t *testing.T) {
	root := makeSpan(t, "1111111111111111", "", 100, 500)
	orphan := makeSpan(t, "2222222222222222", "9999999999999999", 150, 200)

	res := Assemble(traceID(t), []*model.Span{root, orphan})
	require.False(t, res.Incomplete)

	// The orphan stays in the span set but gets no parent edge.
	assert.Equal(t, 2, res.Trace.SpanCount())
	assert.Empty(t, res.Trace.ChildrenOf(spanID(t, "9999999999999999")))
	assert.Empty(t, res.Trace.ChildrenOf(root.SpanID))
}

func TestAssembleOpenTrace(t *testing.T) {
	root := makeSpan(t, "1111111111111111", "", 100, 500)
	open := makeSpan(t, "2222222222222222", "1111111111111111", 150, 0)

	res := Assemble(traceID(t), []*model.Span{root, open})
	require.False(t, res.Incomplete)
	assert.Nil(t, res.Trace.EndTime)
	assert.False(t, res.Trace.Completed())
}

func TestAssembleDoesNotRetainInput(t *testing.T) {
	root := makeSpan(t, "1111111111111111", "", 100, 500)
	res := Assemble(traceID(t), []*model.Span{root})
	require.False(t, res.Incomplete)

	root.Name = "mutated"
	assert.Equal(t, "op-1111111111111111", res.Trace.Spans[0].Name)
}
