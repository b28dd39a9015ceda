// Package health provides liveness and readiness HTTP handlers for the
// tripwatch daemon.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dskow/tripwatch/internal/monitor"
)

// Pre-serialized liveness response avoids json.Encoder allocation.
var livenessBody = []byte(`{"status":"ok"}` + "\n")

// StatusProvider abstracts monitor state access for testability.
type StatusProvider interface {
	Statuses() []monitor.Status
}

// Handler provides /health and /ready endpoints.
type Handler struct {
	status StatusProvider
	logger *slog.Logger
}

// New creates a health check Handler backed by the given status provider.
func New(status StatusProvider, logger *slog.Logger) *Handler {
	return &Handler{status: status, logger: logger}
}

// RegisterRoutes adds health check routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.liveness)
	mux.HandleFunc("/ready", h.readiness)
}

// liveness reports that the daemon process itself is up. It never consults
// target state.
func (h *Handler) liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(livenessBody)
}

// readiness returns 503 while any monitored target is tripped. All state is
// in memory, so unlike a dial-out readiness probe there is nothing to cache.
func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	statuses := h.status.Statuses()

	targets := make(map[string]string, len(statuses))
	anyTripped := false
	for _, s := range statuses {
		switch {
		case s.Tripped:
			targets[s.Name] = "tripped"
			anyTripped = true
		case s.Samples == 0:
			targets[s.Name] = "pending"
		default:
			targets[s.Name] = "ok"
		}
	}

	httpStatus := http.StatusOK
	statusStr := "ready"
	if anyTripped {
		httpStatus = http.StatusServiceUnavailable
		statusStr = "not ready"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
		"status":  statusStr,
		"targets": targets,
	})
}
