package recovery

import (
	"context"
	"strings"
	"time"
)

// Result describes the outcome of a recovery attempt.
type Result struct {
	// Strategy is the name of the strategy that handled the error.
	Strategy string

	// DemoMode is set when the strategy recovered by degrading to
	// canned responses instead of fixing the underlying failure.
	DemoMode bool

	// Message is a human-readable description of what was done.
	Message string
}

// Strategy attempts to recover from a class of errors. Strategies are
// consulted in descending priority order; the first whose CanHandle
// returns true is executed.
type Strategy interface {
	// Name identifies the strategy in records and logs.
	Name() string

	// Priority orders strategies; higher runs first.
	Priority() int

	// CanHandle reports whether this strategy applies to the error.
	CanHandle(err error) bool

	// Recover attempts recovery. It should honor ctx cancellation.
	Recover(ctx context.Context, err error) (Result, error)
}

// ConnectionRetry recovers connection-type failures by waiting a fixed
// delay before reporting the service worth retrying.
type ConnectionRetry struct {
	// Delay is how long to wait before declaring recovery. Default: 1s.
	Delay time.Duration
}

func (ConnectionRetry) Name() string  { return "connection_retry" }
func (ConnectionRetry) Priority() int { return 10 }

func (ConnectionRetry) CanHandle(err error) bool {
	cat, _ := Classify(err)
	return cat == CategoryNetwork
}

func (s ConnectionRetry) Recover(ctx context.Context, err error) (Result, error) {
	if e := sleepCtx(ctx, s.delay()); e != nil {
		return Result{}, e
	}
	return Result{
		Strategy: s.Name(),
		Message:  "waited for connection recovery, retry advised",
	}, nil
}

func (s ConnectionRetry) delay() time.Duration {
	if s.Delay <= 0 {
		return time.Second
	}
	return s.Delay
}

// TimeoutRetry recovers timeout failures by waiting twice the base
// delay before reporting the operation worth retrying.
type TimeoutRetry struct {
	// Delay is the base wait; the strategy waits twice this. Default: 1s.
	Delay time.Duration
}

func (TimeoutRetry) Name() string  { return "timeout_retry" }
func (TimeoutRetry) Priority() int { return 9 }

func (TimeoutRetry) CanHandle(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

func (s TimeoutRetry) Recover(ctx context.Context, err error) (Result, error) {
	if e := sleepCtx(ctx, 2*s.delay()); e != nil {
		return Result{}, e
	}
	return Result{
		Strategy: s.Name(),
		Message:  "backed off after timeout, retry advised",
	}, nil
}

func (s TimeoutRetry) delay() time.Duration {
	if s.Delay <= 0 {
		return time.Second
	}
	return s.Delay
}

// DemoModeFallback matches every error and always succeeds by signaling
// degraded demo mode. It is the deliberate last-resort catch-all: with
// it registered, no handled error goes unrecovered.
type DemoModeFallback struct{}

func (DemoModeFallback) Name() string             { return "demo_mode_fallback" }
func (DemoModeFallback) Priority() int            { return 1 }
func (DemoModeFallback) CanHandle(err error) bool { return true }

func (s DemoModeFallback) Recover(ctx context.Context, err error) (Result, error) {
	return Result{
		Strategy: s.Name(),
		DemoMode: true,
		Message:  "degraded to demo mode responses",
	}, nil
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
