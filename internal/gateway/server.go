package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// Admin endpoints require auth. Not mounted if no auth configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Use(rateLimitMiddleware(g.limiter, g.logger))
			r.Get("/status", g.handleStatus())
			r.Get("/ws/chat", g.handleChatSocket())
			r.Route("/api", func(r chi.Router) {
				r.Post("/chat", g.handleChat())
				r.Get("/sessions", g.handleListSessions())
				r.Get("/sessions/{id}", g.handleGetSession())
				r.Get("/errors", g.handleListErrors())
				r.Get("/skills", g.handleListSkills())
			})
		})
	}

	return r
}
