package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frejasky/coda/internal/observability"
)

const (
	// defaultMaxDuration bounds executors with no explicit limit.
	defaultMaxDuration = 30 * time.Second

	// Weight adjustment bounds. Failures cost a fixed penalty down to
	// the floor; successes reward faster completions more, up to the cap.
	weightPenalty = 0.2
	weightFloor   = 0.5
	weightCap     = 10.0

	// maxHistory bounds the retained execution history.
	maxHistory = 100
)

// Contract violation errors. These indicate programmer error, not
// runtime conditions, and are the only errors Execute returns.
var (
	ErrUnknownSkill       = errors.New("skill: unknown skill id")
	ErrSkillDisabled      = errors.New("skill: skill is disabled")
	ErrMissingRequirement = errors.New("skill: required skill not registered")
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// registered pairs a definition with its executor and adaptive weight.
type registered struct {
	def    Definition
	exec   Executor
	weight float64
}

// Execution is one entry in the registry's execution history.
type Execution struct {
	SkillID  string        `json:"skill_id"`
	Time     time.Time     `json:"time"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracer sets the tracer for per-execution spans.
func WithTracer(tracer *observability.Tracer) RegistryOption {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// Registry holds skills and executes them with timeout and failure
// isolation. Safe for concurrent use.
type Registry struct {
	logger *slog.Logger
	tracer *observability.Tracer

	mu      sync.Mutex
	skills  map[string]*registered
	history []Execution

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: slog.New(nopHandler{}),
		tracer: observability.NewNopTracer(),
		skills: make(map[string]*registered),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a skill and its executor. An existing skill with the
// same id is overwritten with a warning. The initial routing weight is
// derived from the definition's priority.
func (r *Registry) Register(def Definition, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.skills[def.ID]; exists {
		r.logger.Warn("overwriting existing skill", "skill", def.ID)
	}
	r.skills[def.ID] = &registered{
		def:    def,
		exec:   exec,
		weight: def.Priority.initialWeight(),
	}
}

// Unregister removes a skill. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.skills, id)
}

// SetEnabled flips a skill's enabled flag. Unknown ids are ignored.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.skills[id]; ok {
		s.def.Enabled = enabled
	}
}

// Definitions returns a copy of all registered definitions with their
// current weights, for diagnostics.
func (r *Registry) Definitions() []DefinitionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DefinitionStatus, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, DefinitionStatus{Definition: s.def, Weight: s.weight})
	}
	return out
}

// DefinitionStatus is a definition plus its current routing weight.
type DefinitionStatus struct {
	Definition
	Weight float64 `json:"weight"`
}

// Weight returns a skill's current routing weight, or 0 for unknown ids.
func (r *Registry) Weight(id string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.skills[id]; ok {
		return s.weight
	}
	return 0
}

// Execute runs the skill with the given id. It returns an error only
// for contract violations: unknown id, disabled skill, or an
// unregistered requirement. Executor failures, panics, and timeouts
// all produce a failed Output with a non-empty Error instead.
func (r *Registry) Execute(ctx context.Context, id string, in Input) (Output, error) {
	r.mu.Lock()
	s, ok := r.skills[id]
	if !ok {
		r.mu.Unlock()
		return Output{}, fmt.Errorf("%w: %s", ErrUnknownSkill, id)
	}
	if !s.def.Enabled {
		r.mu.Unlock()
		return Output{}, fmt.Errorf("%w: %s", ErrSkillDisabled, id)
	}
	for _, req := range s.def.Requires {
		if _, found := r.skills[req]; !found {
			r.mu.Unlock()
			return Output{}, fmt.Errorf("%w: %s requires %s", ErrMissingRequirement, id, req)
		}
	}
	exec := s.exec
	maxDuration := s.def.MaxDuration
	r.mu.Unlock()

	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}

	ctx, span := r.tracer.StartSkill(ctx, id)

	start := r.now()
	out := r.runIsolated(ctx, id, exec, in, maxDuration)
	out.SkillID = id
	out.Metrics.Duration = r.now().Sub(start)

	if out.Success {
		observability.EndSpan(span, nil)
	} else {
		observability.EndSpan(span, errors.New(out.Error))
	}

	r.recordExecution(id, out)
	return out, nil
}

// runIsolated runs the executor under a deadline, converting timeouts
// and panics into failed outputs. The executor receives the derived
// context so it can observe cancellation; if it does not, it keeps
// running unobserved after the deadline.
func (r *Registry) runIsolated(ctx context.Context, id string, exec Executor, in Input, maxDuration time.Duration) Output {
	ctx, cancel := context.WithTimeout(ctx, maxDuration)
	defer cancel()

	type execResult struct {
		out Output
		err error
	}
	done := make(chan execResult, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- execResult{err: fmt.Errorf("skill panicked: %v", rec)}
			}
		}()
		out, err := exec(ctx, in)
		done <- execResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Output{Success: false, Error: res.err.Error()}
		}
		return res.out
	case <-ctx.Done():
		return Output{
			Success: false,
			Error:   fmt.Sprintf("execution exceeded %s: %v", maxDuration, ctx.Err()),
		}
	}
}

// recordExecution appends to the bounded history and adjusts the
// skill's routing weight. Failures cost a fixed penalty; successes
// reward inversely to duration.
func (r *Registry) recordExecution(id string, out Output) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, Execution{
		SkillID:  id,
		Time:     r.now(),
		Success:  out.Success,
		Duration: out.Metrics.Duration,
		Error:    out.Error,
	})
	if len(r.history) > maxHistory {
		trimmed := make([]Execution, maxHistory)
		copy(trimmed, r.history[len(r.history)-maxHistory:])
		r.history = trimmed
	}

	s, ok := r.skills[id]
	if !ok {
		return
	}
	if out.Success {
		durMs := float64(out.Metrics.Duration.Milliseconds())
		if durMs < 1 {
			durMs = 1
		}
		s.weight = min(weightCap, s.weight+0.1*(1000/durMs))
	} else {
		s.weight = max(weightFloor, s.weight-weightPenalty)
		r.logger.Warn("skill execution failed",
			"skill", id,
			"error", out.Error,
			"weight", s.weight)
	}
}

// History returns a copy of the retained execution history, oldest
// first.
func (r *Registry) History() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Execution, len(r.history))
	copy(out, r.history)
	return out
}
