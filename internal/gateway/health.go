package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Sessions int    `json:"sessions"`
	Backend  string `json:"backend"` // "up", "down", or "unknown"
	DemoMode bool   `json:"demo_mode,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the LLM backend answers, 503 when it is down.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Backend: "unknown",
		}

		if g.sessions != nil {
			resp.Sessions = len(g.sessions.Sessions())
		}

		if g.client != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := g.client.HealthCheck(ctx); err != nil {
				resp.Status = "degraded"
				resp.Backend = "down"
			} else {
				resp.Backend = "up"
			}
		}

		if g.orchestrator != nil {
			resp.DemoMode = g.orchestrator.DemoMode()
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
