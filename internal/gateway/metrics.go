package gateway

import (
	"sync/atomic"
	"time"
)

// Metrics tracks gateway-level counters using atomic operations for
// lock-free concurrency. These are coarse request counters for the
// /status endpoint; Prometheus series live in the observability
// package.
type Metrics struct {
	completions  atomic.Int64
	messages     atomic.Int64
	streams      atomic.Int64
	errors       atomic.Int64
	totalTokens  atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

// RecordCompletion records a successful agent response.
func (m *Metrics) RecordCompletion(tokens int, latency time.Duration) {
	m.completions.Add(1)
	m.totalTokens.Add(int64(tokens))
	m.totalLatency.Add(int64(latency))
}

// RecordMessage records an inbound message.
func (m *Metrics) RecordMessage() {
	m.messages.Add(1)
}

// RecordStream records an opened streaming conversation.
func (m *Metrics) RecordStream() {
	m.streams.Add(1)
}

// RecordError records a degraded or failed response.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	completions := m.completions.Load()
	snap := MetricsSnapshot{
		Completions: completions,
		Messages:    m.messages.Load(),
		Streams:     m.streams.Load(),
		Errors:      m.errors.Load(),
		TotalTokens: m.totalTokens.Load(),
	}
	if completions > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / completions)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Completions int64         `json:"completions"`
	Messages    int64         `json:"messages"`
	Streams     int64         `json:"streams"`
	Errors      int64         `json:"errors"`
	TotalTokens int64         `json:"total_tokens"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
}
