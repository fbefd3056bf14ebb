package handlers

import (
	"net/http"

	"github.com/hindsight/hub/internal/hub"
)

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheck handles health check requests
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// ReadinessCheck returns a handler that checks if the hub is ready
func ReadinessCheck(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h == nil || !h.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
	}
}
