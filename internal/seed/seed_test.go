package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/model"
)

func TestLoad(t *testing.T) {
	h := hub.New(hub.Config{
		TTL:              time.Minute,
		SweepInterval:    time.Second,
		DiscoveryTimeout: time.Second,
		SubscriberBuffer: 64,
	}, nil)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		_ = h.Stop(context.Background())
	})

	spans := demoSpans(model.Now())
	result := h.IngestSpans(spans)
	assert.Equal(t, len(spans), result.Accepted)
	assert.Zero(t, result.Rejected)

	summaries, err := h.ListTraces(model.TraceFilter{})
	require.NoError(t, err)
	assert.Len(t, summaries, 9)

	types := make(map[string]model.TraceType)
	for _, s := range summaries {
		types[s.TraceID.String()] = s.TraceType
	}
	assert.Equal(t, model.TypeGeneric, types["a1b2c3d4e5f6789012345678901234ab"])
	assert.Equal(t, model.FrameworkType("picante"), types["91ca47e0000000000000000000000001"])
	assert.Equal(t, model.FrameworkType("rapace"), types["4a9ace00000000000000000000000001"])
	assert.Equal(t, model.TypeMixed, types["313e0d00000000000000000000000001"])

	yes := true
	withErrors, err := h.ListTraces(model.TraceFilter{HasErrors: &yes})
	require.NoError(t, err)
	assert.Len(t, withErrors, 2)

	// The export trace stays open: its root has no end time yet.
	id, err := model.ParseTraceID("0be40000000000000000000000000001")
	require.NoError(t, err)
	trace, ok := h.GetTrace(id)
	require.True(t, ok)
	assert.False(t, trace.Completed())
	assert.Nil(t, trace.EndTime)
}
