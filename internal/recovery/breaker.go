package recovery

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// BreakerState represents the current state of a service's circuit breaker.
type BreakerState int

const (
	// StateClosed is the normal state, requests flow through.
	StateClosed BreakerState = iota
	// StateOpen rejects requests fast after repeated failures.
	StateOpen
	// StateHalfOpen allows probe requests after the open timeout elapses.
	StateHalfOpen
)

// String returns a human-readable label for the breaker state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens. Default: 5.
	FailureThreshold int

	// Timeout is how long the breaker stays open before allowing a
	// half-open probe. Default: 60s.
	Timeout time.Duration

	// SuccessThreshold is the number of successes while half-open
	// required to close the breaker. Default: 2.
	SuccessThreshold int
}

// defaults fills zero-value fields with sensible defaults.
func (c *BreakerConfig) defaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
}

// breaker holds the per-service state. Guarded by BreakerSet.mu.
type breaker struct {
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	lastSuccess time.Time
}

// BreakerSnapshot is a read-only view of one service's breaker state.
type BreakerSnapshot struct {
	Service     string       `json:"service"`
	State       BreakerState `json:"-"`
	StateLabel  string       `json:"state"`
	Failures    int          `json:"failures"`
	Successes   int          `json:"successes"`
	LastFailure time.Time    `json:"last_failure,omitzero"`
	LastSuccess time.Time    `json:"last_success,omitzero"`
}

// BreakerSet maintains circuit breaker state keyed by logical service
// name. State is shared across all callers referencing the same name
// and is in-process only.
type BreakerSet struct {
	cfg BreakerConfig

	// onStateChange is called outside the lock whenever a breaker
	// transitions. It keeps the set decoupled from logging.
	onStateChange func(service string, from, to BreakerState)

	mu       sync.Mutex
	breakers map[string]*breaker

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewBreakerSet creates an empty breaker set with the given config.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	cfg.defaults()
	return &BreakerSet{
		cfg:      cfg,
		breakers: make(map[string]*breaker),
		now:      time.Now,
	}
}

// get returns the breaker for the service, creating it closed if absent.
// Caller must hold s.mu.
func (s *BreakerSet) get(service string) *breaker {
	b, ok := s.breakers[service]
	if !ok {
		b = &breaker{state: StateClosed}
		s.breakers[service] = b
	}
	return b
}

// RecordSuccess records a successful call against the service.
// While half-open, enough successes close the breaker and reset counters.
func (s *BreakerSet) RecordSuccess(service string) {
	s.mu.Lock()
	b := s.get(service)
	prev := b.state
	b.lastSuccess = s.now()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= s.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	case StateClosed:
		b.failures = 0
	}
	next := b.state
	s.mu.Unlock()

	s.notify(service, prev, next)
}

// RecordFailure records a failed call against the service. Enough
// consecutive failures open the breaker; any failure while half-open
// reverts to open.
func (s *BreakerSet) RecordFailure(service string) {
	s.mu.Lock()
	b := s.get(service)
	prev := b.state
	b.lastFailure = s.now()

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.successes = 0
	case StateClosed:
		b.failures++
		if b.failures >= s.cfg.FailureThreshold {
			b.state = StateOpen
		}
	}
	next := b.state
	s.mu.Unlock()

	s.notify(service, prev, next)
}

// IsOpen reports whether the service's breaker is rejecting requests.
// When the open timeout has elapsed since the last failure, the check
// itself transitions the breaker to half-open and reports false. There
// is no background timer; the transition is lazy.
func (s *BreakerSet) IsOpen(service string) bool {
	s.mu.Lock()
	b := s.get(service)
	prev := b.state

	if b.state == StateOpen && s.now().Sub(b.lastFailure) >= s.cfg.Timeout {
		b.state = StateHalfOpen
		b.successes = 0
	}
	next := b.state
	open := b.state == StateOpen
	s.mu.Unlock()

	s.notify(service, prev, next)
	return open
}

// Snapshot returns the current state of all known breakers, for
// diagnostics. The returned slice is sorted by service name.
func (s *BreakerSet) Snapshot() []BreakerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]BreakerSnapshot, 0, len(s.breakers))
	for name, b := range s.breakers {
		out = append(out, BreakerSnapshot{
			Service:     name,
			State:       b.state,
			StateLabel:  b.state.String(),
			Failures:    b.failures,
			Successes:   b.successes,
			LastFailure: b.lastFailure,
			LastSuccess: b.lastSuccess,
		})
	}
	slices.SortFunc(out, func(a, b BreakerSnapshot) int {
		return cmp.Compare(a.Service, b.Service)
	})
	return out
}

func (s *BreakerSet) notify(service string, from, to BreakerState) {
	if from != to && s.onStateChange != nil {
		s.onStateChange(service, from, to)
	}
}
