package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsight/hub/internal/model"
)

func testEvent(t *testing.T, suffix string) model.TraceEvent {
	t.Helper()
	if len(suffix) == 1 {
		suffix = "0" + suffix
	}
	id, err := model.ParseTraceID("000000000000000000000000000000" + suffix)
	require.NoError(t, err)
	return model.TraceEvent{Type: model.EventSpanAdded, TraceID: id}
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New(8, nil)

	sub := b.Subscribe(context.Background())
	defer sub.Close()
	assert.Equal(t, 1, b.Len())

	ev := testEvent(t, "1")
	b.Publish(ev)

	select {
	case got := <-sub.Events():
		assert.Equal(t, ev.TraceID, got.TraceID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFanOutPreservesOrder(t *testing.T) {
	b := New(16, nil)

	subA := b.Subscribe(context.Background())
	defer subA.Close()
	subB := b.Subscribe(context.Background())
	defer subB.Close()

	sent := []model.TraceEvent{
		testEvent(t, "1"),
		testEvent(t, "2"),
		testEvent(t, "3"),
	}
	for _, ev := range sent {
		b.Publish(ev)
	}

	for _, sub := range []*Subscription{subA, subB} {
		for i, want := range sent {
			select {
			case got := <-sub.Events():
				assert.Equal(t, want.TraceID, got.TraceID, "event %d", i)
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for event")
			}
		}
	}
}

func TestDropOldestOnOverflow(t *testing.T) {
	b := New(2, nil)

	sub := b.Subscribe(context.Background())
	defer sub.Close()

	// Nobody consumes: the third publish evicts the first event.
	b.Publish(testEvent(t, "1"))
	b.Publish(testEvent(t, "2"))
	b.Publish(testEvent(t, "3"))

	got := <-sub.Events()
	assert.Equal(t, testEvent(t, "2").TraceID, got.TraceID)
	got = <-sub.Events()
	assert.Equal(t, testEvent(t, "3").TraceID, got.TraceID)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected extra event %v", ev.TraceID)
	default:
	}
}

func TestSlowSubscriberDoesNotAffectPeers(t *testing.T) {
	b := New(1, nil)

	slow := b.Subscribe(context.Background())
	defer slow.Close()
	fast := b.Subscribe(context.Background())
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Publishes never block even though the slow subscriber's
		// queue overflows immediately.
		for i := 0; i < 100; i++ {
			b.Publish(testEvent(t, "1"))
			<-fast.Events()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	b := New(8, nil)

	sub := b.Subscribe(context.Background())
	assert.Equal(t, 1, b.Len())

	sub.Close()
	assert.Equal(t, 0, b.Len())

	// The channel is closed, not left dangling.
	_, open := <-sub.Events()
	assert.False(t, open)

	// Close is idempotent and publish after close does not panic.
	sub.Close()
	b.Publish(testEvent(t, "1"))
}

func TestContextCancellationUnsubscribes(t *testing.T) {
	b := New(8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	require.Equal(t, 1, b.Len())

	cancel()

	require.Eventually(t, func() bool {
		return b.Len() == 0
	}, time.Second, 5*time.Millisecond)

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestNilContextSubscribe(t *testing.T) {
	b := New(8, nil)

	sub := b.Subscribe(nil)
	defer sub.Close()

	b.Publish(testEvent(t, "1"))
	select {
	case <-sub.Events():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
