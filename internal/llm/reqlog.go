package llm

import (
	"sync"
	"time"
)

// LogEntry records one backend call for diagnostics.
type LogEntry struct {
	Time      time.Time     `json:"time"`
	Operation string        `json:"operation"`
	Model     string        `json:"model"`
	Messages  int           `json:"messages"`
	Tokens    int           `json:"tokens,omitempty"`
	Duration  time.Duration `json:"duration"`
	CacheHit  bool          `json:"cache_hit,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// requestLog is a bounded FIFO history of backend calls. When the
// capacity is exceeded the oldest entries are dropped.
type requestLog struct {
	mu      sync.Mutex
	entries []LogEntry
	max     int
}

func newRequestLog(max int) *requestLog {
	if max <= 0 {
		max = 1000
	}
	return &requestLog{max: max}
}

// Append records an entry, trimming the oldest when full.
func (l *requestLog) Append(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	if len(l.entries) > l.max {
		// Copy instead of re-slicing so the backing array does not pin
		// dropped entries.
		trimmed := make([]LogEntry, l.max)
		copy(trimmed, l.entries[len(l.entries)-l.max:])
		l.entries = trimmed
	}
}

// Entries returns a copy of the log, oldest first.
func (l *requestLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *requestLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
