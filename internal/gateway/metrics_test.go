package gateway

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_Snapshot(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	m.RecordMessage()
	m.RecordMessage()
	m.RecordStream()
	m.RecordCompletion(100, 2*time.Second)
	m.RecordCompletion(50, 4*time.Second)
	m.RecordError()

	snap := m.Snapshot()
	if snap.Messages != 2 {
		t.Errorf("Messages = %d, want 2", snap.Messages)
	}
	if snap.Streams != 1 {
		t.Errorf("Streams = %d, want 1", snap.Streams)
	}
	if snap.Completions != 2 {
		t.Errorf("Completions = %d, want 2", snap.Completions)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
	if snap.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", snap.TotalTokens)
	}
	if snap.AvgLatency != 3*time.Second {
		t.Errorf("AvgLatency = %v, want 3s", snap.AvgLatency)
	}
}

func TestMetrics_ZeroCompletions(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	snap := m.Snapshot()
	if snap.AvgLatency != 0 {
		t.Errorf("AvgLatency = %v, want 0", snap.AvgLatency)
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := &Metrics{}
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.RecordMessage()
				m.RecordCompletion(1, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Messages != 1000 {
		t.Errorf("Messages = %d, want 1000", snap.Messages)
	}
	if snap.Completions != 1000 {
		t.Errorf("Completions = %d, want 1000", snap.Completions)
	}
}
