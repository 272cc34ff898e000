// Package recovery implements error classification, per-service circuit
// breakers, and ranked recovery strategies. The handler never lets an
// error escape: classification, recording, and strategy execution are
// all contained, and the worst case is a degraded demo-mode result.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxRecords bounds the retained error history.
func WithMaxRecords(n int) HandlerOption {
	return func(h *Handler) {
		h.records = newRecordStore(n)
	}
}

// WithBreakerConfig overrides the circuit breaker thresholds.
func WithBreakerConfig(cfg BreakerConfig) HandlerOption {
	return func(h *Handler) {
		h.breakers = NewBreakerSet(cfg)
	}
}

// WithErrorCallback registers an observer invoked once per handled
// error, after classification.
func WithErrorCallback(fn func(category Category, severity Severity)) HandlerOption {
	return func(h *Handler) {
		h.onError = fn
	}
}

// WithBreakerCallback registers an observer for breaker state changes,
// in addition to the handler's own logging.
func WithBreakerCallback(fn func(service string, from, to BreakerState)) HandlerOption {
	return func(h *Handler) {
		h.onBreakerChange = fn
	}
}

// Handler is the error/recovery engine. It classifies errors, keeps a
// bounded record history, tracks per-service circuit breakers, and
// dispatches registered recovery strategies.
type Handler struct {
	logger   *slog.Logger
	breakers *BreakerSet
	records  *recordStore

	onError         func(category Category, severity Severity)
	onBreakerChange func(service string, from, to BreakerState)

	mu         sync.Mutex
	strategies []Strategy

	handled  int
	resolved int
}

// NewHandler creates a handler with the default strategies registered
// (connection retry, timeout retry, demo-mode fallback).
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		logger:   slog.New(nopHandler{}),
		breakers: NewBreakerSet(BreakerConfig{}),
		records:  newRecordStore(defaultMaxRecords),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.breakers.onStateChange = func(service string, from, to BreakerState) {
		h.logger.Info("circuit breaker state change",
			"service", service,
			"from", from.String(),
			"to", to.String())
		if h.onBreakerChange != nil {
			h.onBreakerChange(service, from, to)
		}
	}

	h.RegisterStrategy(ConnectionRetry{})
	h.RegisterStrategy(TimeoutRetry{})
	h.RegisterStrategy(DemoModeFallback{})
	return h
}

// RegisterStrategy adds a strategy, keeping the list sorted by
// descending priority. New strategies can out-rank the built-ins.
func (h *Handler) RegisterStrategy(s Strategy) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := len(h.strategies)
	for i, existing := range h.strategies {
		if s.Priority() > existing.Priority() {
			idx = i
			break
		}
	}
	h.strategies = append(h.strategies, nil)
	copy(h.strategies[idx+1:], h.strategies[idx:])
	h.strategies[idx] = s
}

// HandleError classifies and records the error, then runs the first
// matching strategy by priority. A strategy failure is logged and the
// search continues with lower-priority candidates. It returns nil only
// when no registered strategy matches; with the default catch-all
// registered that never happens. HandleError itself never panics or
// returns an error.
func (h *Handler) HandleError(ctx context.Context, err error, errCtx map[string]string) *Result {
	if err == nil {
		return nil
	}

	category, severity := Classify(err)
	if h.onError != nil {
		h.onError(category, severity)
	}
	id := h.records.append(ErrorRecord{
		Time:     time.Now(),
		Message:  err.Error(),
		Category: category,
		Severity: severity,
		Context:  errCtx,
	})

	h.mu.Lock()
	h.handled++
	candidates := make([]Strategy, len(h.strategies))
	copy(candidates, h.strategies)
	h.mu.Unlock()

	h.logger.Warn("handling error",
		"category", string(category),
		"severity", string(severity),
		"error", err)

	for _, s := range candidates {
		if !s.CanHandle(err) {
			continue
		}
		result, rerr := h.recoverSafely(ctx, s, err)
		if rerr != nil {
			h.logger.Error("recovery strategy failed",
				"strategy", s.Name(),
				"error", rerr)
			continue
		}
		h.records.resolve(id, s.Name())
		h.mu.Lock()
		h.resolved++
		h.mu.Unlock()
		return &result
	}
	return nil
}

// recoverSafely runs a strategy, converting a panic into an error.
func (h *Handler) recoverSafely(ctx context.Context, s Strategy, err error) (result Result, rerr error) {
	defer func() {
		if r := recover(); r != nil {
			rerr = &strategyPanicError{strategy: s.Name(), value: r}
		}
	}()
	return s.Recover(ctx, err)
}

type strategyPanicError struct {
	strategy string
	value    any
}

func (e *strategyPanicError) Error() string {
	return "strategy " + e.strategy + " panicked"
}

// RecordSuccess records a successful call for circuit breaking.
func (h *Handler) RecordSuccess(service string) {
	h.breakers.RecordSuccess(service)
}

// RecordFailure records a failed call for circuit breaking.
func (h *Handler) RecordFailure(service string) {
	h.breakers.RecordFailure(service)
}

// IsCircuitOpen reports whether the service's breaker rejects requests.
func (h *Handler) IsCircuitOpen(service string) bool {
	return h.breakers.IsOpen(service)
}

// Stats aggregates handler activity for diagnostics.
type Stats struct {
	Handled        int               `json:"handled"`
	Resolved       int               `json:"resolved"`
	ResolutionRate float64           `json:"resolution_rate"`
	ByCategory     map[Category]int  `json:"by_category"`
	BySeverity     map[Severity]int  `json:"by_severity"`
	Breakers       []BreakerSnapshot `json:"breakers"`
}

// Stats returns aggregate counts by category and severity, the
// resolution rate, and all breaker states.
func (h *Handler) Stats() Stats {
	records := h.records.snapshot()

	h.mu.Lock()
	st := Stats{
		Handled:    h.handled,
		Resolved:   h.resolved,
		ByCategory: make(map[Category]int),
		BySeverity: make(map[Severity]int),
	}
	h.mu.Unlock()

	if st.Handled > 0 {
		st.ResolutionRate = float64(st.Resolved) / float64(st.Handled)
	}
	for _, rec := range records {
		st.ByCategory[rec.Category]++
		st.BySeverity[rec.Severity]++
	}
	st.Breakers = h.breakers.Snapshot()
	return st
}

// History returns the retained error records, oldest first.
func (h *Handler) History() []ErrorRecord {
	return h.records.snapshot()
}
