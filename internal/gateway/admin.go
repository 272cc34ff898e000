// Package gateway provides an HTTP server for chat, administration,
// and monitoring. It binds to loopback by default and follows the
// module system pattern.
package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/frejasky/coda/internal/agent"
	"github.com/go-chi/chi/v5"
)

// handleChat processes one message synchronously via POST /api/chat.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.orchestrator == nil {
			http.Error(w, "agent unavailable", http.StatusServiceUnavailable)
			return
		}

		var req agent.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Message == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			req.UserID = "anonymous"
		}
		if err := g.limiter.Allow("message"); err != nil {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		g.metrics.RecordMessage()
		start := time.Now()

		resp := g.orchestrator.Process(r.Context(), req)

		if resp.DemoMode {
			g.metrics.RecordError()
		} else {
			g.metrics.RecordCompletion(len(resp.Content)/4, time.Since(start))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// sessionJSON is a serializable session header.
type sessionJSON struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Started      string `json:"started"`
	LastUpdate   string `json:"last_update"`
	MessageCount int    `json:"message_count"`
	Topic        string `json:"topic,omitempty"`
}

// handleListSessions returns all live session headers as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := []sessionJSON{}

		if g.sessions != nil {
			for _, s := range g.sessions.Sessions() {
				sessions = append(sessions, sessionJSON{
					ID:           s.ID,
					UserID:       s.UserID,
					Started:      s.Started.UTC().Format(time.RFC3339),
					LastUpdate:   s.LastUpdate.UTC().Format(time.RFC3339),
					MessageCount: s.MessageCount,
					Topic:        s.Context.Topic,
				})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessions)
	}
}

// handleGetSession returns one full session including its turns.
func (g *Gateway) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		if g.sessions == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		sess, ok := g.sessions.Session(id)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sess)
	}
}

// handleListErrors returns recovery statistics and recent error records.
func (g *Gateway) handleListErrors() http.HandlerFunc {
	type errorsResponse struct {
		Stats   any `json:"stats"`
		Records any `json:"records"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := errorsResponse{}
		if g.errors != nil {
			resp.Stats = g.errors.Stats()
			resp.Records = g.errors.History()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// handleListSkills returns the registered skills with current weights.
func (g *Gateway) handleListSkills() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var defs any = []struct{}{}
		if g.skills != nil {
			defs = g.skills.Definitions()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(defs)
	}
}
