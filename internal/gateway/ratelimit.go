package gateway

import (
	"log/slog"
	"net/http"

	"github.com/frejasky/coda/internal/security"
)

// rateLimitMiddleware rejects requests over the configured budget with
// 429. Chat endpoints apply a second, tighter "message" limit in their
// handlers.
func rateLimitMiddleware(limiter *security.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.Allow("request"); err != nil {
				logger.Warn("request rate limited", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
