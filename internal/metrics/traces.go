package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TraceMetrics tracks ingestion, store and broadcast metrics. All record
// methods are safe on a nil receiver so components can run unmetered.
type TraceMetrics struct {
	spansIngestedTotal   *prometheus.CounterVec
	spansRejectedTotal   *prometheus.CounterVec
	ingestDuration       *prometheus.HistogramVec
	tracesStored         prometheus.Gauge
	tracesEvictedTotal   prometheus.Counter
	tracesCompletedTotal prometheus.Counter
	sweepDuration        prometheus.Histogram
	eventsPublishedTotal *prometheus.CounterVec
	eventsDroppedTotal   prometheus.Counter
	subscribers          prometheus.Gauge
	discoveriesTotal     *prometheus.CounterVec
	sessionsRegistered   prometheus.Gauge
}

// NewTraceMetrics initializes trace metrics with the collector.
func NewTraceMetrics(collector *Collector) *TraceMetrics {
	return &TraceMetrics{
		spansIngestedTotal: collector.RegisterCounter(
			MetricSpansIngestedTotal,
			"Total number of spans accepted by ingest",
			[]string{LabelTransport},
		),
		spansRejectedTotal: collector.RegisterCounter(
			MetricSpansRejectedTotal,
			"Total number of spans rejected during ingest validation",
			[]string{LabelTransport},
		),
		ingestDuration: collector.RegisterHistogram(
			MetricIngestDuration,
			"Duration of span batch ingest in seconds",
			[]string{LabelTransport},
			prometheus.DefBuckets,
		),
		tracesStored: collector.RegisterPlainGauge(
			MetricTracesStored,
			"Number of traces currently resident in the store",
		),
		tracesEvictedTotal: collector.RegisterPlainCounter(
			MetricTracesEvictedTotal,
			"Total number of traces removed by the TTL sweeper",
		),
		tracesCompletedTotal: collector.RegisterPlainCounter(
			MetricTracesCompletedTotal,
			"Total number of traces that reached completion",
		),
		sweepDuration: collector.RegisterPlainHistogram(
			MetricSweepDuration,
			"Duration of one TTL sweep pass in seconds",
			prometheus.DefBuckets,
		),
		eventsPublishedTotal: collector.RegisterCounter(
			MetricEventsPublishedTotal,
			"Total number of trace events published to subscribers",
			[]string{LabelEventType},
		),
		eventsDroppedTotal: collector.RegisterPlainCounter(
			MetricEventsDroppedTotal,
			"Total number of events dropped for slow subscribers",
		),
		subscribers: collector.RegisterPlainGauge(
			MetricSubscribers,
			"Number of live event subscribers",
		),
		discoveriesTotal: collector.RegisterCounter(
			MetricDiscoveriesTotal,
			"Total number of capability discovery attempts",
			[]string{LabelOutcome},
		),
		sessionsRegistered: collector.RegisterPlainGauge(
			MetricSessionsRegistered,
			"Number of producer sessions currently registered",
		),
	}
}

// RecordIngest records the outcome of one ingest batch.
func (m *TraceMetrics) RecordIngest(transport string, accepted, rejected int, duration time.Duration) {
	if m == nil {
		return
	}
	m.spansIngestedTotal.WithLabelValues(transport).Add(float64(accepted))
	m.spansRejectedTotal.WithLabelValues(transport).Add(float64(rejected))
	m.ingestDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// SetStoredTraces updates the resident trace gauge.
func (m *TraceMetrics) SetStoredTraces(n int) {
	if m == nil {
		return
	}
	m.tracesStored.Set(float64(n))
}

// RecordEviction records traces removed by one sweep pass.
func (m *TraceMetrics) RecordEviction(evicted int, duration time.Duration) {
	if m == nil {
		return
	}
	m.tracesEvictedTotal.Add(float64(evicted))
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordCompletion counts one completed trace.
func (m *TraceMetrics) RecordCompletion() {
	if m == nil {
		return
	}
	m.tracesCompletedTotal.Inc()
}

// RecordPublish counts one published event.
func (m *TraceMetrics) RecordPublish(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordDrop counts events dropped for a slow subscriber.
func (m *TraceMetrics) RecordDrop(n int) {
	if m == nil {
		return
	}
	m.eventsDroppedTotal.Add(float64(n))
}

// SetSubscribers updates the live subscriber gauge.
func (m *TraceMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// RecordDiscovery records one capability discovery attempt.
func (m *TraceMetrics) RecordDiscovery(outcome string) {
	if m == nil {
		return
	}
	m.discoveriesTotal.WithLabelValues(outcome).Inc()
}

// SetSessions updates the registered session gauge.
func (m *TraceMetrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsRegistered.Set(float64(n))
}
