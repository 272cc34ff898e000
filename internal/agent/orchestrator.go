package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/frejasky/coda/internal/llm"
	"github.com/frejasky/coda/internal/memory"
	"github.com/frejasky/coda/internal/observability"
	"github.com/frejasky/coda/internal/recovery"
	"github.com/frejasky/coda/internal/skill"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDemoMode forces canned responses instead of LLM calls. Set at
// startup when the backend health check fails.
func WithDemoMode(enabled bool) Option {
	return func(o *Orchestrator) { o.demoMode = enabled }
}

// WithTracer sets the tracer for per-request spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithChainingDisabled turns off follow-up skill chains globally,
// overriding per-request AllowChaining.
func WithChainingDisabled(disabled bool) Option {
	return func(o *Orchestrator) { o.noChaining = disabled }
}

// Orchestrator wires the gateway, skills, memory, and error engine
// together. All collaborators are injected; the orchestrator owns no
// global state.
type Orchestrator struct {
	client     llm.Client
	skills     *skill.Registry
	memory     *memory.Manager
	errors     *recovery.Handler
	logger     *slog.Logger
	tracer     *observability.Tracer
	demoMode   bool
	noChaining bool

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// New creates an orchestrator over the given collaborators.
func New(client llm.Client, skills *skill.Registry, mem *memory.Manager, errHandler *recovery.Handler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: client,
		skills: skills,
		memory: mem,
		errors: errHandler,
		logger: slog.New(nopHandler{}),
		tracer: observability.NewNopTracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DemoMode reports whether canned responses are active.
func (o *Orchestrator) DemoMode() bool { return o.demoMode }

// SetDemoMode flips degraded mode at runtime.
func (o *Orchestrator) SetDemoMode(enabled bool) { o.demoMode = enabled }

// Process handles one user message end to end: memory bookkeeping,
// skill routing or forced execution, optional chaining, LLM or demo
// fallback, confidence scoring, and breaker accounting. It never
// returns an error; any internal failure resolves to the fixed offline
// fallback response.
func (o *Orchestrator) Process(ctx context.Context, req Request) Response {
	start := o.now()

	ctx, span := o.tracer.StartProcess(ctx, req.UserID, req.SessionID)

	resp, err := o.process(ctx, req, start)
	if err == nil {
		span.SetAttributes(
			attribute.String("session.id", resp.SessionID),
			attribute.Float64("response.confidence", resp.Confidence),
		)
		observability.EndSpan(span, nil)
		o.errors.RecordSuccess(breakerService)
		return resp
	}

	observability.EndSpan(span, err)

	o.logger.Error("message processing failed", "error", err, "user", req.UserID)
	o.errors.HandleError(ctx, err, map[string]string{
		"service": breakerService,
		"user":    req.UserID,
	})
	o.errors.RecordFailure(breakerService)

	return Response{
		ID:         uuid.NewString(),
		Time:       o.now(),
		SessionID:  req.SessionID,
		Content:    offlineFallback,
		Duration:   o.now().Sub(start),
		Confidence: offlineConfidence,
		DemoMode:   true,
	}
}

// process is the fallible inner sequence; Process wraps it with the
// never-throws guarantee.
func (o *Orchestrator) process(ctx context.Context, req Request, start time.Time) (Response, error) {
	session := o.memory.GetOrCreateSession(req.UserID, req.SessionID)

	if _, err := o.memory.AddMessage(session.ID, llm.RoleUser, req.Message, nil); err != nil {
		return Response{}, fmt.Errorf("record user turn: %w", err)
	}

	window, err := o.memory.GetContextWindow(session.ID, 0)
	if err != nil {
		return Response{}, fmt.Errorf("fetch context window: %w", err)
	}
	// Drop the just-appended user turn; it is re-sent as the task.
	if len(window) > 0 {
		window = window[:len(window)-1]
	}

	in := skill.Input{
		Task:    req.Message,
		Context: req.Context,
		History: window,
	}

	var (
		content    string
		skillsUsed []string
		followUp   []string
		skillOK    bool
		demoUsed   bool
	)

	out, execErr := o.runSkills(ctx, req, in, &skillsUsed)
	if execErr != nil {
		return Response{}, execErr
	}

	if out != nil && out.Success {
		content = out.Result
		followUp = out.Chained
		skillOK = true
	} else {
		content, demoUsed, err = o.fallback(ctx, req, window)
		if err != nil {
			return Response{}, err
		}
	}

	if _, err := o.memory.AddMessage(session.ID, llm.RoleAssistant, content, nil); err != nil {
		return Response{}, fmt.Errorf("record assistant turn: %w", err)
	}

	return Response{
		ID:         uuid.NewString(),
		Time:       o.now(),
		SessionID:  session.ID,
		Content:    content,
		SkillsUsed: skillsUsed,
		Duration:   o.now().Sub(start),
		Confidence: confidence(skillOK, len(content)),
		FollowUp:   followUp,
		DemoMode:   demoUsed,
	}, nil
}

// runSkills executes the forced skill or routes the task, then runs
// the chosen skill's chain when requested. It returns the output whose
// result should answer the user, or nil when no skill applied.
func (o *Orchestrator) runSkills(ctx context.Context, req Request, in skill.Input, skillsUsed *[]string) (*skill.Output, error) {
	if o.demoMode {
		return nil, nil
	}

	var out skill.Output
	if req.ForceSkill != "" {
		forced, err := o.skills.Execute(ctx, req.ForceSkill, in)
		if err != nil {
			// Contract violation: unknown or disabled skill id from
			// the caller.
			return nil, fmt.Errorf("forced skill: %w", err)
		}
		out = forced
	} else {
		out = o.skills.Route(ctx, req.Message, in)
	}

	if out.SkillID == "none" {
		return nil, nil
	}
	*skillsUsed = append(*skillsUsed, out.SkillID)

	if !out.Success || !req.AllowChaining || o.noChaining || len(out.Chained) == 0 {
		return &out, nil
	}

	chainIn := in
	chainIn.Context = out.Result
	results := o.skills.Chain(ctx, out.Chained, chainIn)

	final := out
	for _, r := range results {
		if !r.Success {
			break
		}
		*skillsUsed = append(*skillsUsed, r.SkillID)
		final = r
	}
	// The primary skill answered; chain results refine it when they
	// all succeeded.
	if final.SkillID != out.SkillID {
		final.Chained = nil
	}
	return &final, nil
}

// fallback produces a response without a skill: a raw LLM call, or
// canned demo text when demo mode is set. The LLM error propagates so
// Process can degrade to the offline response.
func (o *Orchestrator) fallback(ctx context.Context, req Request, window []llm.ChatMessage) (content string, demo bool, err error) {
	if o.demoMode {
		return demoResponse(req.Message), true, nil
	}

	messages := make([]llm.ChatMessage, 0, len(window)+1)
	messages = append(messages, window...)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: req.Message})

	resp, err := o.client.Chat(ctx, messages, llm.Options{})
	if err != nil {
		return "", false, fmt.Errorf("fallback chat: %w", err)
	}
	return resp.Message.Content, false, nil
}
