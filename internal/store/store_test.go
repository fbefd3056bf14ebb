package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/hub/internal/model"
)

// capturePublisher records published events in order.
type capturePublisher struct {
	mu     sync.Mutex
	events []model.TraceEvent
}

func (p *capturePublisher) Publish(ev model.TraceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) all() []model.TraceEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.TraceEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) ofType(t model.EventType) []model.TraceEvent {
	var out []model.TraceEvent
	for _, ev := range p.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testTraceID(t *testing.T, s string) model.TraceID {
	t.Helper()
	id, err := model.ParseTraceID(s)
	require.NoError(t, err)
	return id
}

func testSpanID(t *testing.T, s string) model.SpanID {
	t.Helper()
	id, err := model.ParseSpanID(s)
	require.NoError(t, err)
	return id
}

func makeSpan(t *testing.T, trace, id, parent string, start, end uint64) model.Span {
	t.Helper()
	span := model.Span{
		TraceID:     testTraceID(t, trace),
		SpanID:      testSpanID(t, id),
		Name:        "op-" + id,
		ServiceName: "svc",
		StartTime:   model.Timestamp(start),
		Status:      model.OkStatus(),
	}
	if parent != "" {
		p := testSpanID(t, parent)
		span.ParentSpanID = &p
	}
	if end > 0 {
		e := model.Timestamp(end)
		span.EndTime = &e
	}
	return span
}

func setupStore(t *testing.T, ttl time.Duration) (*Store, *capturePublisher) {
	t.Helper()
	pub := &capturePublisher{}
	s := New(Config{TTL: ttl, SweepInterval: time.Second}, nil, pub, nil)
	return s, pub
}

const (
	trace1 = "a1b2c3d4e5f6789012345678901234ab"
	trace2 = "deadbeef12345678901234567890abcd"
	rootID = "1111111111111111"
	span2  = "2222222222222222"
	span3  = "3333333333333333"
)

func TestIngestAndGetTrace(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	result := s.Ingest([]model.Span{
		makeSpan(t, trace1, rootID, "", 100, 500),
		makeSpan(t, trace1, span2, rootID, 150, 300),
	})
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 0, result.Rejected)

	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, 2, trace.SpanCount())
	assert.Equal(t, testSpanID(t, rootID), trace.RootSpanID)
	assert.Equal(t, 1, s.Len())
}

func TestIngestRejectsInvalidSpans(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	bad := makeSpan(t, trace1, span2, "", 100, 500)
	bad.Name = ""

	result := s.Ingest([]model.Span{
		makeSpan(t, trace1, rootID, "", 100, 500),
		bad,
	})
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Rejected)
	require.Len(t, result.Errors, 1)

	// The valid span still made it in.
	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, 1, trace.SpanCount())
}

func TestIngestIdempotent(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	span := makeSpan(t, trace1, rootID, "", 100, 500)
	s.Ingest([]model.Span{span})

	// Re-ingesting the same (trace_id, span_id) overwrites, it does not
	// duplicate.
	span.Name = "renamed"
	s.Ingest([]model.Span{span})

	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, 1, trace.SpanCount())
	assert.Equal(t, "renamed", trace.Spans[0].Name)
}

func TestGetTraceIncompleteHidden(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	// Only a child arrived; the trace has no root yet.
	s.Ingest([]model.Span{makeSpan(t, trace1, span2, rootID, 150, 300)})

	_, ok := s.GetTrace(testTraceID(t, trace1))
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())

	// The root arrives out of order; the cached child attaches.
	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, 2, trace.SpanCount())
}

func TestEventSequence(t *testing.T) {
	s, pub := setupStore(t, time.Minute)

	// The child arrives first: the trace is still rootless, so only a
	// span_added event fires.
	s.Ingest([]model.Span{makeSpan(t, trace1, span2, rootID, 150, 300)})

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventSpanAdded, events[0].Type)

	// The root closes the trace: started, span_added and completed fire
	// in order.
	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	events = pub.all()
	require.Len(t, events, 4)
	assert.Equal(t, model.EventTraceStarted, events[1].Type)
	require.NotNil(t, events[1].Started)
	assert.Equal(t, "op-"+rootID, events[1].Started.RootSpanName)
	assert.Equal(t, model.EventSpanAdded, events[2].Type)
	assert.Equal(t, model.EventTraceCompleted, events[3].Type)

	started := pub.ofType(model.EventTraceStarted)
	assert.Len(t, started, 1)

	added := pub.ofType(model.EventSpanAdded)
	assert.Len(t, added, 2)

	completed := pub.ofType(model.EventTraceCompleted)
	require.Len(t, completed, 1)
	require.NotNil(t, completed[0].Done)
	assert.Equal(t, uint64(400), completed[0].Done.DurationNanos)
	assert.Equal(t, 2, completed[0].Done.SpanCount)
}

func TestCompletedFiresOnce(t *testing.T) {
	s, pub := setupStore(t, time.Minute)

	span := makeSpan(t, trace1, rootID, "", 100, 500)
	s.Ingest([]model.Span{span})
	require.Len(t, pub.ofType(model.EventTraceCompleted), 1)

	// Re-ingesting a span of an already completed trace does not fire a
	// second completion.
	s.Ingest([]model.Span{span})
	assert.Len(t, pub.ofType(model.EventTraceCompleted), 1)
}

func TestOpenTraceNotCompleted(t *testing.T) {
	s, pub := setupStore(t, time.Minute)

	s.Ingest([]model.Span{
		makeSpan(t, trace1, rootID, "", 100, 500),
		makeSpan(t, trace1, span2, rootID, 150, 0),
	})

	assert.Empty(t, pub.ofType(model.EventTraceCompleted))

	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.False(t, trace.Completed())
}

func TestClassifyOnIngest(t *testing.T) {
	classify := func(tr *model.Trace) model.TraceType {
		return model.FrameworkType("picante")
	}
	s := New(Config{TTL: time.Minute}, classify, nil, nil)

	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, model.FrameworkType("picante"), trace.Type)
}

func TestTTLExpiry(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	_, ok := s.GetTrace(testTraceID(t, trace1))
	assert.True(t, ok)

	// Just before the TTL the trace is still readable.
	current = current.Add(time.Minute - time.Nanosecond)
	_, ok = s.GetTrace(testTraceID(t, trace1))
	assert.True(t, ok)

	// At the TTL it reads as absent even before the sweeper runs.
	current = current.Add(time.Nanosecond)
	_, ok = s.GetTrace(testTraceID(t, trace1))
	assert.False(t, ok)
}

func TestTTLRefreshOnWrite(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	// A write near the deadline resets the idle clock.
	current = current.Add(50 * time.Second)
	s.Ingest([]model.Span{makeSpan(t, trace1, span2, rootID, 150, 300)})

	current = current.Add(50 * time.Second)
	_, ok := s.GetTrace(testTraceID(t, trace1))
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	current = current.Add(30 * time.Second)
	s.Ingest([]model.Span{makeSpan(t, trace2, span2, "", 100, 500)})

	// Only the first trace has been idle past the TTL.
	current = current.Add(31 * time.Second)
	evicted := s.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, s.Len())

	_, ok := s.GetTrace(testTraceID(t, trace2))
	assert.True(t, ok)

	assert.Equal(t, 0, s.Sweep())
}

func TestSnapshot(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	s.Ingest([]model.Span{
		makeSpan(t, trace2, rootID, "", 100, 500),
		makeSpan(t, trace1, span2, "", 100, 500),
		// Incomplete trace: child without root, excluded from snapshots.
		makeSpan(t, "00000000000000000000000000000003", span3, rootID, 100, 200),
	})

	snapshot := s.Snapshot()
	require.Len(t, snapshot, 2)
	// Ordered by trace id.
	assert.Equal(t, testTraceID(t, trace1), snapshot[0].TraceID)
	assert.Equal(t, testTraceID(t, trace2), snapshot[1].TraceID)
}

func TestStartStop(t *testing.T) {
	s, _ := setupStore(t, time.Minute)
	ctx := context.Background()

	assert.False(t, s.Ready())
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Ready())
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.Ready())
	require.NoError(t, s.Stop(ctx))
}

func TestFreshEntryNotSwept(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	// An entry exists in the shard map before its first span is applied,
	// exactly as during the first half of an upsert. It must not look
	// idle to the sweeper.
	s.getOrCreateEntry(testTraceID(t, trace1))
	assert.Equal(t, 0, s.Sweep())

	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 100, 500)})

	_, ok := s.GetTrace(testTraceID(t, trace1))
	assert.True(t, ok)
}

func TestSweptEntryRefusesStaleWrite(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	current := time.Unix(1000, 0)
	s.now = func() time.Time { return current }

	// A writer fetches the entry, then a sweep evicts it before the
	// write is applied.
	stale := s.getOrCreateEntry(testTraceID(t, trace1))
	current = current.Add(2 * time.Minute)
	require.Equal(t, 1, s.Sweep())

	// The evicted entry is tombstoned: the stale write is refused.
	span := makeSpan(t, trace1, rootID, "", 100, 500)
	_, ok := s.applySpan(stale, &span)
	assert.False(t, ok)

	// The full upsert path retries into a fresh entry instead.
	s.upsert(&span)
	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, 1, trace.SpanCount())
}

func TestConcurrentSweepNeverLosesSpans(t *testing.T) {
	s, _ := setupStore(t, time.Minute)

	const workers = 4
	const tracesPerWorker = 250

	// Sweep continuously while fresh traces are ingested. Every accepted
	// first span must stay readable afterwards.
	done := make(chan struct{})
	var sweeper sync.WaitGroup
	sweeper.Add(1)
	go func() {
		defer sweeper.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.Sweep()
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < tracesPerWorker; i++ {
				trace := fmt.Sprintf("%04x%04x000000000000000000000001", w+1, i+1)
				result := s.Ingest([]model.Span{makeSpan(t, trace, rootID, "", 100, 500)})
				assert.Equal(t, 1, result.Accepted)
			}
		}(w)
	}
	wg.Wait()
	close(done)
	sweeper.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < tracesPerWorker; i++ {
			trace := fmt.Sprintf("%04x%04x000000000000000000000001", w+1, i+1)
			_, ok := s.GetTrace(testTraceID(t, trace))
			require.True(t, ok, "trace %s lost to a concurrent sweep", trace)
		}
	}
}

func TestConcurrentIngest(t *testing.T) {
	s, pub := setupStore(t, time.Minute)

	const workers = 8
	const spansPerWorker = 50

	s.Ingest([]model.Span{makeSpan(t, trace1, rootID, "", 1, 0)})

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < spansPerWorker; i++ {
				id := fmt.Sprintf("%04x%04x00000001", w+1, i+1)
				span := makeSpan(t, trace1, id, rootID, uint64(i+2), uint64(i+100))
				s.Ingest([]model.Span{span})
			}
		}(w)
	}
	wg.Wait()

	trace, ok := s.GetTrace(testTraceID(t, trace1))
	require.True(t, ok)
	assert.Equal(t, workers*spansPerWorker+1, trace.SpanCount())

	// One span_added event per accepted span.
	assert.Len(t, pub.ofType(model.EventSpanAdded), workers*spansPerWorker+1)
	assert.Len(t, pub.ofType(model.EventTraceStarted), 1)
}
