package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/frejasky/coda/internal/cron"
	"github.com/frejasky/coda/internal/recovery"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   time.Duration    `json:"uptime_seconds"`
	Metrics  MetricsSnapshot  `json:"metrics"`
	Sessions int              `json:"sessions"`
	Errors   *recovery.Stats  `json:"errors,omitempty"`
	Jobs     []cron.JobStatus `json:"jobs,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:  time.Since(g.startedAt).Truncate(time.Second),
			Metrics: g.metrics.Snapshot(),
		}

		if g.sessions != nil {
			resp.Sessions = len(g.sessions.Sessions())
		}

		if g.errors != nil {
			stats := g.errors.Stats()
			resp.Errors = &stats
		}

		if g.jobs != nil {
			resp.Jobs = g.jobs.Jobs()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
