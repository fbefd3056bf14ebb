package telemetry

// Span attribute keys following OpenTelemetry semantic conventions
const (
	// HTTP attributes
	AttrHTTPMethod       = "http.method"
	AttrHTTPRoute        = "http.route"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPUserAgent    = "http.user_agent"
	AttrHTTPResponseSize = "http.response.size"
)
