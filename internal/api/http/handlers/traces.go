package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/api/validation"
	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/model"
)

// TraceHandlers serves the trace query surface.
type TraceHandlers struct {
	hub *hub.Hub
	log zerolog.Logger
}

// NewTraceHandlers creates trace query handlers backed by the hub.
func NewTraceHandlers(h *hub.Hub) *TraceHandlers {
	return &TraceHandlers{
		hub: h,
		log: logger.WithComponent("http.traces"),
	}
}

// ListResponse wraps a page of trace summaries.
type ListResponse struct {
	Traces []model.TraceSummary `json:"traces"`
	Count  int                  `json:"count"`
}

// List handles GET /api/v1/traces. Filters come from query parameters;
// a malformed filter is a 400, an empty result is a 200 with no traces.
func (t *TraceHandlers) List(w http.ResponseWriter, r *http.Request) {
	filter, err := validation.ParseTraceFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := t.hub.ListTraces(filter)
	if err != nil {
		var verr model.InvalidFilterError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		t.log.Error().Err(err).Msg("Trace list failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if summaries == nil {
		summaries = []model.TraceSummary{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Traces: summaries, Count: len(summaries)})
}

// Get handles GET /api/v1/traces/{id}. A malformed id is a 400; an
// unknown, expired or still rootless trace is a 404.
func (t *TraceHandlers) Get(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/traces/")
	if raw == "" || strings.Contains(raw, "/") {
		http.NotFound(w, r)
		return
	}

	id, err := validation.ParseTraceID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	trace, ok := t.hub.GetTrace(id)
	if !ok {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}
	writeJSON(w, http.StatusOK, trace)
}
