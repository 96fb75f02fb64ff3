package handlers

import (
	"context"
	"net/http"
	"time"

	pstore "github.com/driftfs/driftfs/pkg/payload/store"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

// HealthCheckTimeout is the maximum time allowed for health check
// operations, so a slow store cannot block health probes indefinitely.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Are the metadata and payload stores reachable?
type HealthHandler struct {
	store     *store.GORMStore
	payloads  pstore.PayloadStore
	startTime time.Time
}

// Response represents a standard health response wrapper.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(s *store.GORMStore, payloads pstore.PayloadStore) *HealthHandler {
	return &HealthHandler{
		store:     s,
		payloads:  payloads,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	WriteJSONOK(w, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"service":    "driftfs",
			"started_at": h.startTime.UTC().Format(time.RFC3339),
			"uptime":     uptime.Round(time.Second).String(),
			"uptime_sec": int64(uptime.Seconds()),
		},
	})
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK only when both the metadata store and the payload store
// pass their health checks.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"metadata_store": "healthy",
		"payload_store":  "healthy",
	}
	status := http.StatusOK
	overall := "healthy"

	if err := h.store.HealthCheck(ctx); err != nil {
		checks["metadata_store"] = err.Error()
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	if err := h.payloads.HealthCheck(ctx); err != nil {
		checks["payload_store"] = err.Error()
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	WriteJSON(w, status, Response{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Data:      checks,
	})
}
