package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg          string
		wantCategory Category
		wantSeverity Severity
	}{
		{"dial tcp 127.0.0.1:11434: connection refused", CategoryNetwork, SeverityHigh},
		{"context deadline exceeded", CategoryTimeout, SeverityMedium},
		{"request timed out after 30s", CategoryTimeout, SeverityMedium},
		{"model not found", CategoryNotFound, SeverityLow},
		{"HTTP 503 service unavailable", CategoryServerError, SeverityHigh},
		{"401 unauthorized", CategoryAuthentication, SeverityCritical},
		{"429 too many requests", CategoryRateLimit, SeverityMedium},
		{"cannot allocate memory", CategoryMemory, SeverityCritical},
		{"invalid character '}' looking for beginning of value", CategoryParsing, SeverityLow},
		{"exit status 1", CategoryExecution, SeverityMedium},
		{"something entirely different", CategoryUnknown, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cat, sev := Classify(errors.New(tt.msg))
			if cat != tt.wantCategory {
				t.Errorf("category = %q, want %q", cat, tt.wantCategory)
			}
			if sev != tt.wantSeverity {
				t.Errorf("severity = %q, want %q", sev, tt.wantSeverity)
			}
		})
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	// A message matching both network and timeout keywords classifies
	// as network, which has higher rule priority.
	cat, _ := Classify(errors.New("network timeout while dialing"))
	if cat != CategoryNetwork {
		t.Errorf("category = %q, want network", cat)
	}
}

// fixedStrategy is a scriptable test strategy.
type fixedStrategy struct {
	name      string
	priority  int
	canHandle func(error) bool
	recover   func(context.Context, error) (Result, error)
}

func (s fixedStrategy) Name() string            { return s.name }
func (s fixedStrategy) Priority() int           { return s.priority }
func (s fixedStrategy) CanHandle(e error) bool  { return s.canHandle(e) }
func (s fixedStrategy) Recover(ctx context.Context, e error) (Result, error) {
	return s.recover(ctx, e)
}

func TestHandleError_DemoModeCatchAll(t *testing.T) {
	h := NewHandler()

	result := h.HandleError(context.Background(), errors.New("something entirely novel"), nil)
	if result == nil {
		t.Fatal("catch-all fallback should recover every error")
	}
	if result.Strategy != "demo_mode_fallback" {
		t.Errorf("strategy = %q, want demo_mode_fallback", result.Strategy)
	}
	if !result.DemoMode {
		t.Error("fallback result should signal demo mode")
	}
}

func TestHandleError_PriorityOrdering(t *testing.T) {
	h := NewHandler(WithMaxRecords(10))
	h.RegisterStrategy(fixedStrategy{
		name:      "custom_top",
		priority:  99,
		canHandle: func(error) bool { return true },
		recover: func(context.Context, error) (Result, error) {
			return Result{Strategy: "custom_top"}, nil
		},
	})

	result := h.HandleError(context.Background(), errors.New("anything"), nil)
	if result == nil || result.Strategy != "custom_top" {
		t.Fatalf("result = %+v, want custom_top to out-rank built-ins", result)
	}
}

func TestHandleError_ConnectionRetryMatchesNetwork(t *testing.T) {
	h := NewHandler()
	// Replace the built-in delay with a fast one.
	h.mu.Lock()
	for i, s := range h.strategies {
		if _, ok := s.(ConnectionRetry); ok {
			h.strategies[i] = ConnectionRetry{Delay: time.Millisecond}
		}
	}
	h.mu.Unlock()

	result := h.HandleError(context.Background(), errors.New("dial tcp: connection refused"), nil)
	if result == nil || result.Strategy != "connection_retry" {
		t.Fatalf("result = %+v, want connection_retry", result)
	}
	if result.DemoMode {
		t.Error("connection retry should not signal demo mode")
	}
}

func TestHandleError_FailedStrategyFallsThrough(t *testing.T) {
	h := NewHandler()
	h.RegisterStrategy(fixedStrategy{
		name:      "flaky",
		priority:  50,
		canHandle: func(error) bool { return true },
		recover: func(context.Context, error) (Result, error) {
			return Result{}, errors.New("recovery blew up")
		},
	})

	result := h.HandleError(context.Background(), errors.New("whatever"), nil)
	if result == nil {
		t.Fatal("lower-priority strategies should still be consulted")
	}
	if result.Strategy != "demo_mode_fallback" {
		t.Errorf("strategy = %q, want demo_mode_fallback", result.Strategy)
	}
}

func TestHandleError_PanickingStrategyIsContained(t *testing.T) {
	h := NewHandler()
	h.RegisterStrategy(fixedStrategy{
		name:      "panicky",
		priority:  50,
		canHandle: func(error) bool { return true },
		recover: func(context.Context, error) (Result, error) {
			panic("boom")
		},
	})

	result := h.HandleError(context.Background(), errors.New("whatever"), nil)
	if result == nil || result.Strategy != "demo_mode_fallback" {
		t.Fatalf("result = %+v, want containment and fallback", result)
	}
}

func TestHandleError_NilError(t *testing.T) {
	h := NewHandler()
	if result := h.HandleError(context.Background(), nil, nil); result != nil {
		t.Errorf("result = %+v, want nil for nil error", result)
	}
}

func TestHandler_RecordsAndStats(t *testing.T) {
	h := NewHandler()

	h.HandleError(context.Background(), errors.New("503 service unavailable"), map[string]string{"op": "chat"})
	h.HandleError(context.Background(), errors.New("gibberish happened"), nil)
	h.RecordFailure("svc")

	stats := h.Stats()
	if stats.Handled != 2 {
		t.Errorf("handled = %d, want 2", stats.Handled)
	}
	if stats.Resolved != 2 {
		t.Errorf("resolved = %d, want 2", stats.Resolved)
	}
	if stats.ResolutionRate != 1.0 {
		t.Errorf("resolution rate = %v, want 1.0", stats.ResolutionRate)
	}
	if stats.ByCategory[CategoryServerError] != 1 || stats.ByCategory[CategoryUnknown] != 1 {
		t.Errorf("by category = %v", stats.ByCategory)
	}
	if len(stats.Breakers) != 1 || stats.Breakers[0].Service != "svc" {
		t.Errorf("breakers = %v", stats.Breakers)
	}

	history := h.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if !history[0].Resolved || history[0].Strategy == "" {
		t.Errorf("record not marked resolved: %+v", history[0])
	}
	if history[0].Context["op"] != "chat" {
		t.Errorf("context not preserved: %+v", history[0].Context)
	}
	if history[0].ID == "" {
		t.Error("record should have an id")
	}
}

func TestRecordStore_Bounded(t *testing.T) {
	store := newRecordStore(10)
	for i := 0; i < 25; i++ {
		store.append(ErrorRecord{Message: fmt.Sprintf("err-%d", i)})
	}

	records := store.snapshot()
	if len(records) != 10 {
		t.Fatalf("record count = %d, want 10", len(records))
	}
	if records[0].Message != "err-15" {
		t.Errorf("oldest retained = %q, want err-15", records[0].Message)
	}
	if records[9].Message != "err-24" {
		t.Errorf("newest retained = %q, want err-24", records[9].Message)
	}
}

func TestTimeoutRetry_WaitsDoubleDelay(t *testing.T) {
	s := TimeoutRetry{Delay: 5 * time.Millisecond}
	if !s.CanHandle(errors.New("request timeout")) {
		t.Fatal("timeout retry should match timeout errors")
	}

	start := time.Now()
	result, err := s.Recover(context.Background(), errors.New("timeout"))
	if err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("waited %v, want at least 10ms", elapsed)
	}
	if result.Strategy != "timeout_retry" {
		t.Errorf("strategy = %q", result.Strategy)
	}
}

func TestStrategy_RecoverHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectionRetry{Delay: time.Minute}.Recover(ctx, errors.New("connection refused"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Recover() error = %v, want context.Canceled", err)
	}
}

func TestHandler_ErrorCallback(t *testing.T) {
	var categories []Category
	h := NewHandler(WithErrorCallback(func(c Category, _ Severity) {
		categories = append(categories, c)
	}))

	h.HandleError(context.Background(), errors.New("connection refused"), nil)
	h.HandleError(context.Background(), errors.New("request timeout"), nil)

	if len(categories) != 2 {
		t.Fatalf("callback fired %d times, want 2", len(categories))
	}
	if categories[0] != CategoryNetwork || categories[1] != CategoryTimeout {
		t.Errorf("categories = %v", categories)
	}
}

func TestHandler_BreakerCallback(t *testing.T) {
	type transition struct {
		service  string
		from, to BreakerState
	}
	var seen []transition
	h := NewHandler(
		WithBreakerConfig(BreakerConfig{FailureThreshold: 2}),
		WithBreakerCallback(func(service string, from, to BreakerState) {
			seen = append(seen, transition{service, from, to})
		}),
	)

	h.RecordFailure("svc")
	h.RecordFailure("svc")

	if len(seen) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(seen))
	}
	if seen[0].service != "svc" || seen[0].from != StateClosed || seen[0].to != StateOpen {
		t.Errorf("transition = %+v", seen[0])
	}
}
