package metrics

// Metric name constants following Prometheus naming conventions
// Format: hindsight_{component}_{metric}_{unit}

// Ingest metrics
const (
	MetricSpansIngestedTotal = "hindsight_spans_ingested_total"
	MetricSpansRejectedTotal = "hindsight_spans_rejected_total"
	MetricIngestDuration     = "hindsight_ingest_duration_seconds"
)

// Store metrics
const (
	MetricTracesStored         = "hindsight_traces_stored"
	MetricTracesEvictedTotal   = "hindsight_traces_evicted_total"
	MetricTracesCompletedTotal = "hindsight_traces_completed_total"
	MetricSweepDuration        = "hindsight_store_sweep_duration_seconds"
)

// Broadcast metrics
const (
	MetricEventsPublishedTotal = "hindsight_events_published_total"
	MetricEventsDroppedTotal   = "hindsight_events_dropped_total"
	MetricSubscribers          = "hindsight_subscribers"
)

// Discovery metrics
const (
	MetricDiscoveriesTotal   = "hindsight_discoveries_total"
	MetricSessionsRegistered = "hindsight_sessions_registered"
)

// API metrics
const (
	MetricAPIRequestsTotal   = "hindsight_api_requests_total"
	MetricAPIRequestDuration = "hindsight_api_request_duration_seconds"
)

// Label name constants
const (
	LabelTransport = "transport"
	LabelEventType = "event_type"
	LabelOutcome   = "outcome"
	LabelMethod    = "method"
	LabelEndpoint  = "endpoint"
	LabelStatus    = "status"
)
