// Package hub wires the trace store, classifier, broadcaster and
// capability registry into the single process-scoped service object.
// There is no ambient global: the hub is constructed once in main and
// passed by reference to every surface that needs it.
package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/broadcast"
	"github.com/hindsight/hub/internal/capability"
	"github.com/hindsight/hub/internal/classifier"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/metrics"
	"github.com/hindsight/hub/internal/model"
	"github.com/hindsight/hub/internal/query"
	"github.com/hindsight/hub/internal/store"
)

// Config holds hub configuration.
type Config struct {
	// TTL is the idle retention window for traces.
	TTL time.Duration
	// SweepInterval is the TTL sweeper interval.
	SweepInterval time.Duration
	// DiscoveryTimeout bounds each capability discovery call.
	DiscoveryTimeout time.Duration
	// SubscriberBuffer is the per-subscriber event queue capacity.
	SubscriberBuffer int
}

// Hub is the ingestion, aggregation, classification and live-delivery
// core of the tracing service.
type Hub struct {
	classifier  *classifier.Classifier
	broadcaster *broadcast.Broadcaster
	store       *store.Store
	registry    *capability.Registry
	engine      *query.Engine
	metrics     *metrics.TraceMetrics
	log         zerolog.Logger
}

// New creates a hub. m may be nil to run unmetered.
func New(cfg Config, m *metrics.TraceMetrics) *Hub {
	cls := classifier.New()
	bc := broadcast.New(cfg.SubscriberBuffer, m)

	h := &Hub{
		classifier:  cls,
		broadcaster: bc,
		registry:    capability.NewRegistry(cfg.DiscoveryTimeout, m),
		engine:      query.New(),
		metrics:     m,
		log:         logger.WithComponent("hub"),
	}
	h.store = store.New(
		store.Config{TTL: cfg.TTL, SweepInterval: cfg.SweepInterval},
		cls.Classify,
		bc,
		m,
	)
	return h
}

// Start launches the hub's background work (the TTL sweeper).
func (h *Hub) Start(ctx context.Context) error {
	return h.store.Start(ctx)
}

// Stop stops background work. Subscriptions stay open until their owners
// cancel; nothing is persisted.
func (h *Hub) Stop(ctx context.Context) error {
	return h.store.Stop(ctx)
}

// Ready returns true if the hub is ready to ingest.
func (h *Hub) Ready() bool {
	return h.store.Ready()
}

// IngestSpans upserts a span batch from an internal caller.
func (h *Hub) IngestSpans(spans []model.Span) model.IngestResult {
	return h.IngestSpansVia("internal", spans)
}

// IngestSpansVia upserts a span batch, labeling metrics with the
// transport that delivered it. Per-span validation failures are counted
// as rejected and never abort the batch.
func (h *Hub) IngestSpansVia(transport string, spans []model.Span) model.IngestResult {
	start := time.Now()
	result := h.store.Ingest(spans)
	h.metrics.RecordIngest(transport, result.Accepted, result.Rejected, time.Since(start))
	h.metrics.SetStoredTraces(h.store.Len())

	if result.Rejected > 0 {
		h.log.Debug().
			Str("transport", transport).
			Int("accepted", result.Accepted).
			Int("rejected", result.Rejected).
			Msg("Span batch ingested with rejects")
	}
	return result
}

// GetTrace returns a snapshot of the assembled trace, or false when the
// trace is unknown, expired, or still has no root span.
func (h *Hub) GetTrace(id model.TraceID) (*model.Trace, bool) {
	return h.store.GetTrace(id)
}

// ListTraces returns filtered trace summaries over an atomic snapshot of
// the store. A malformed filter is the only caller-visible error.
func (h *Hub) ListTraces(filter model.TraceFilter) ([]model.TraceSummary, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return h.engine.List(h.store.Snapshot(), filter), nil
}

// SubscribeEvents registers a live event subscriber. The subscription
// ends when ctx is cancelled or its Close is called.
func (h *Hub) SubscribeEvents(ctx context.Context) *broadcast.Subscription {
	return h.broadcaster.Subscribe(ctx)
}

// AttachSession registers a producer connection and kicks off the
// one-shot capability discovery in the background, so connection
// readiness and span ingestion never wait on it. The session is
// recorded before discovery starts: a DetachSession during the
// in-flight call removes it for good. The producer's spans flow
// through IngestSpans only; the Describer is a control-plane handle
// with no span emitter attached.
func (h *Hub) AttachSession(ctx context.Context, producer capability.Describer) capability.SessionID {
	sessionID := capability.NewSessionID()
	h.registry.Register(sessionID)
	go h.registry.Discover(ctx, sessionID, producer)
	return sessionID
}

// DetachSession discards the session's capability set on disconnect.
func (h *Hub) DetachSession(id capability.SessionID) {
	h.registry.Remove(id)
}

// Capabilities returns the cached capability set for a session.
func (h *Hub) Capabilities(id capability.SessionID) (capability.CapabilitySet, bool) {
	return h.registry.Get(id)
}

// Classifier exposes the rule table so new framework rules can be
// registered at startup.
func (h *Hub) Classifier() *classifier.Classifier {
	return h.classifier
}
