package llm

import "errors"

// Sentinel errors for backend operations.
var (
	// ErrBackendDown indicates the backend is unreachable or returned
	// a 5xx response.
	ErrBackendDown = errors.New("llm backend unavailable")

	// ErrRateLimit indicates the backend returned a rate limit response.
	ErrRateLimit = errors.New("llm backend rate limited")

	// ErrAuthentication indicates the backend rejected the credentials.
	ErrAuthentication = errors.New("llm backend authentication failed")

	// ErrBadRequest indicates the backend rejected the request shape.
	ErrBadRequest = errors.New("llm backend rejected request")
)

// IsRetryable reports whether the error is transient and the request can
// be retried after a delay. Client-side errors (bad request, auth)
// propagate immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendDown) || errors.Is(err, ErrRateLimit)
}
