package http

import (
	"net/http"
	"strings"

	"github.com/hindsight/hub/internal/api/http/handlers"
	"github.com/hindsight/hub/internal/api/http/middleware"
	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
)

// Router manages HTTP routes and middleware
type Router struct {
	mux           *http.ServeMux
	hub           *hub.Hub
	traceHandlers *handlers.TraceHandlers
	ingestHandler *handlers.IngestHandlers
	otlpHandler   *handlers.OTLPHandlers
	eventHandlers *handlers.EventHandlers
}

// NewRouter creates a new router
func NewRouter(h *hub.Hub, maxBodyBytes int64) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		hub:           h,
		traceHandlers: handlers.NewTraceHandlers(h),
		ingestHandler: handlers.NewIngestHandlers(h, maxBodyBytes),
		otlpHandler:   handlers.NewOTLPHandlers(h, maxBodyBytes),
		eventHandlers: handlers.NewEventHandlers(h),
	}

	r.setupRoutes()

	return r
}

// setupRoutes sets up all HTTP routes
func (r *Router) setupRoutes() {
	chain := middleware.Chain(
		middleware.Recovery(logger.WithComponent("http.middleware")),
		middleware.Tracing(),
		middleware.Logging(logger.WithComponent("http.middleware")),
	)

	// Health check endpoints
	r.mux.Handle("/health", chain(http.HandlerFunc(handlers.HealthCheck)))
	r.mux.Handle("/ready", chain(handlers.ReadinessCheck(r.hub)))

	// Span ingest endpoints
	r.mux.Handle("/api/v1/spans", chain(http.HandlerFunc(r.handleSpans)))
	r.mux.Handle("/v1/traces", chain(http.HandlerFunc(r.handleOTLP)))

	// Trace query endpoints
	r.mux.Handle("/api/v1/traces", chain(http.HandlerFunc(r.handleTraces)))
	r.mux.Handle("/api/v1/traces/", chain(http.HandlerFunc(r.handleTraceByID)))

	// Live event stream. The websocket upgrade hijacks the connection,
	// so it skips the logging middleware's response wrapper.
	r.mux.Handle("/api/v1/events", http.HandlerFunc(r.handleEvents))

	// Default API v1 route (for unmatched paths)
	r.mux.Handle("/api/v1/", chain(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})))
}

func (r *Router) handleSpans(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	r.ingestHandler.IngestSpans(w, req)
}

func (r *Router) handleOTLP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	r.otlpHandler.ExportTraces(w, req)
}

func (r *Router) handleTraces(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	r.traceHandlers.List(w, req)
}

func (r *Router) handleTraceByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	r.traceHandlers.Get(w, req)
}

func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	r.eventHandlers.ServeEvents(w, req)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
