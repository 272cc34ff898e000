// Package security provides request rate limiting and secret redaction
// for the HTTP surface and the log pipeline.
package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig holds configurable rate limits. Zero values fall
// back to defaults; a negative value disables that limit.
type RateLimitConfig struct {
	RequestsPerMin int `yaml:"requests_per_min"`
	MessagesPerMin int `yaml:"messages_per_min"`
	TokensPerHour  int `yaml:"tokens_per_hour"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMin: 600,
		MessagesPerMin: 60,
		TokensPerHour:  0, // 0 = unlimited
	}
}

// RateLimiter implements sliding window rate limiting. Each bucket
// tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
// Zero-value fields in cfg are replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	if cfg.RequestsPerMin == 0 {
		cfg.RequestsPerMin = defaults.RequestsPerMin
	}
	if cfg.MessagesPerMin == 0 {
		cfg.MessagesPerMin = defaults.MessagesPerMin
	}

	rl := &RateLimiter{
		now:     time.Now,
		buckets: map[string]*bucket{},
	}
	if cfg.RequestsPerMin > 0 {
		rl.buckets["request"] = &bucket{window: time.Minute, limit: cfg.RequestsPerMin}
	}
	if cfg.MessagesPerMin > 0 {
		rl.buckets["message"] = &bucket{window: time.Minute, limit: cfg.MessagesPerMin}
	}
	if cfg.TokensPerHour > 0 {
		rl.buckets["token"] = &bucket{window: time.Hour, limit: cfg.TokensPerHour}
	}
	return rl
}

// Allow checks whether an event of the given kind is allowed.
// Returns nil if allowed, ErrRateLimited if the limit is exceeded.
// kind must be one of: "request", "message", "token".
func (rl *RateLimiter) Allow(kind string) error {
	return rl.AllowN(kind, 1)
}

// AllowN checks whether n events of the given kind are allowed.
// Used for token accounting where one call consumes many tokens.
func (rl *RateLimiter) AllowN(kind string, n int) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		// Unknown kind = no limit configured.
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events)+n > b.limit {
		return ErrRateLimited
	}
	for range n {
		b.events = append(b.events, now)
	}
	return nil
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
