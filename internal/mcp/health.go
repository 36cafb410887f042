package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/studyloop/edsync/internal/orchestrator"
)

// HealthResponse is the JSON body of the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthProber resolves a health probe to a result, never an error.
type HealthProber interface {
	HealthStatus(ctx context.Context) orchestrator.HealthStatus
}

// NewHealthHandler creates an HTTP handler for the /health endpoint. The
// probe's own timeout bounds the request; this handler never hangs.
func NewHealthHandler(prober HealthProber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := prober.HealthStatus(r.Context())

		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Message:   status.Message,
		}

		w.Header().Set("Content-Type", "application/json")
		if !status.IsHealthy {
			response.Status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(response)
			return
		}

		response.Status = "healthy"
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}
