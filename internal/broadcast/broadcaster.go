// Package broadcast fans trace events out to live subscribers.
//
// Delivery contract: each subscriber owns an independent bounded queue.
// When a queue is full the OLDEST buffered event is dropped to make room
// for the new one. Live trace views are best-effort, not a durable log.
// Publish never blocks on a subscriber, and a slow subscriber never
// affects the publisher or its peers. Within one subscription, delivered
// events preserve publish order.
package broadcast

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/metrics"
	"github.com/hindsight/hub/internal/model"
)

// DefaultBufferSize is the per-subscriber queue capacity used when the
// configured size is not positive.
const DefaultBufferSize = 256

// Subscription is one subscriber's view of the event stream. The
// sequence ends only when the subscription is cancelled or the process
// shuts down; it is not restartable.
type Subscription struct {
	b  *Broadcaster
	ch chan model.TraceEvent

	mu     sync.Mutex
	closed bool
}

// Events returns the channel delivering this subscription's events. The
// channel is closed on cancellation.
func (s *Subscription) Events() <-chan model.TraceEvent {
	return s.ch
}

// Close cancels the subscription and releases its queue immediately.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
}

// Broadcaster is the single-producer, multi-consumer event fan-out. The
// subscriber list is locked only on subscribe/unsubscribe; publishing
// takes a read lock.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	bufSize int
	metrics *metrics.TraceMetrics
	log     zerolog.Logger
}

// New creates a broadcaster with the given per-subscriber buffer size.
func New(bufSize int, m *metrics.TraceMetrics) *Broadcaster {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Broadcaster{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufSize,
		metrics: m,
		log:     logger.WithComponent("broadcast"),
	}
}

// Subscribe registers a new subscriber. The subscription is cancelled
// when ctx is done or Close is called, whichever comes first; cleanup
// happens synchronously on whichever path fires.
func (b *Broadcaster) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		b:  b,
		ch: make(chan model.TraceEvent, b.bufSize),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.log.Debug().Int("subscribers", n).Msg("Subscriber registered")

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}
	return sub
}

// Publish delivers the event to every current subscriber. It never
// blocks: a full subscriber queue drops its oldest event first.
func (b *Broadcaster) Publish(ev model.TraceEvent) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	dropped := 0
	for _, sub := range subs {
		if !sub.offer(ev) {
			dropped++
		}
	}
	b.metrics.RecordPublish(string(ev.Type))
	if dropped > 0 {
		b.metrics.RecordDrop(dropped)
		b.log.Debug().
			Str("event_type", string(ev.Type)).
			Int("dropped_for", dropped).
			Msg("Dropped oldest event for slow subscribers")
	}
}

// offer enqueues the event, evicting the oldest buffered event when the
// queue is full. Returns false when an eviction happened. The per-sub
// mutex keeps the evict-then-send sequence ordered against concurrent
// close.
func (s *Subscription) offer(ev model.TraceEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}

	select {
	case s.ch <- ev:
		return true
	default:
	}

	// Queue full: drop the oldest, then retry once. The consumer may
	// have raced a receive in between, so the retry can still succeed
	// without an actual drop.
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
	return false
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	close(sub.ch)
	sub.mu.Unlock()

	b.mu.Lock()
	delete(b.subs, sub)
	n := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.log.Debug().Int("subscribers", n).Msg("Subscriber unregistered")
}

// Len returns the current subscriber count.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
