package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frejasky/coda/internal/observability"
)

// nopHandler is a slog.Handler that discards all log records.
// Enabled returns false so slog skips formatting entirely (zero cost).
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// MetricsSink receives per-call measurements for external consumption.
// A nil sink disables emission.
type MetricsSink interface {
	RecordLLMRequest(model, operation string, tokens int, duration time.Duration, err error)
}

// GatewayConfig controls retry, caching, and logging behavior.
type GatewayConfig struct {
	// RetryAttempts is the total number of attempts per call. Default: 3.
	RetryAttempts int

	// RetryBaseDelay is the delay after the first failure; subsequent
	// delays double per attempt. Default: 1s.
	RetryBaseDelay time.Duration

	// CacheTTL is how long successful chat responses stay cached.
	// Default: 5m.
	CacheTTL time.Duration

	// CacheSize caps the number of cached responses. Default: 256.
	CacheSize int

	// RequestLogSize caps the request history. Default: 1000.
	RequestLogSize int
}

func (c *GatewayConfig) defaults() {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	if c.RequestLogSize <= 0 {
		c.RequestLogSize = 1000
	}
}

// GatewayOption configures optional Gateway behavior.
type GatewayOption func(*Gateway)

// WithLogger injects a structured logger into the Gateway.
// When nil or omitted, all log output is silently discarded.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithMetricsSink injects a metrics sink for per-call measurements.
func WithMetricsSink(s MetricsSink) GatewayOption {
	return func(g *Gateway) { g.sink = s }
}

// WithTracer sets the tracer for per-call client spans.
func WithTracer(t *observability.Tracer) GatewayOption {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// Gateway wraps a raw Client with retry-with-backoff, a best-effort TTL
// response cache, and a bounded request history. It implements Client
// itself, so callers depend on one interface regardless of wrapping.
type Gateway struct {
	client Client
	cfg    GatewayConfig
	cache  *responseCache
	reqlog *requestLog
	logger *slog.Logger
	sink   MetricsSink
	tracer *observability.Tracer

	// sleep is injectable for testing. Defaults to a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Client = (*Gateway)(nil)

// NewGateway creates a Gateway around the given client.
func NewGateway(client Client, cfg GatewayConfig, opts ...GatewayOption) *Gateway {
	cfg.defaults()
	g := &Gateway{
		client: client,
		cfg:    cfg,
		cache:  newResponseCache(cfg.CacheTTL, cfg.CacheSize),
		reqlog: newRequestLog(cfg.RequestLogSize),
		tracer: observability.NewNopTracer(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(nopHandler{})
	}
	return g
}

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

// backoffDelay returns the delay before retrying after the given
// 1-based attempt: base * 2^(attempt-1).
func backoffDelay(attempt int, base time.Duration) time.Duration {
	return base << (attempt - 1)
}

// Chat sends a complete chat request, retrying transient failures with
// exponential backoff and caching successful responses.
func (g *Gateway) Chat(ctx context.Context, messages []ChatMessage, opts Options) (ChatResponse, error) {
	start := time.Now()
	key := cacheKey("chat", messages)

	ctx, span := g.tracer.StartLLM(ctx, g.client.ModelName(), "chat")

	if resp, ok := g.cache.Get(key); ok {
		g.reqlog.Append(LogEntry{
			Time:      start,
			Operation: "chat",
			Model:     resp.Model,
			Messages:  len(messages),
			Tokens:    resp.TotalTokens(),
			CacheHit:  true,
		})
		observability.EndSpan(span, nil)
		return resp, nil
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.RetryAttempts; attempt++ {
		resp, err := g.client.Chat(ctx, messages, opts)
		if err == nil {
			resp.Duration = time.Since(start)
			g.cache.Put(key, resp)
			g.record("chat", resp.Model, resp.TotalTokens(), len(messages), resp.Duration, nil)
			observability.EndSpan(span, nil)
			return resp, nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == g.cfg.RetryAttempts {
			break
		}

		delay := backoffDelay(attempt, g.cfg.RetryBaseDelay)
		g.logger.Warn("chat attempt failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if err := g.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	g.record("chat", g.client.ModelName(), 0, len(messages), time.Since(start), lastErr)
	observability.EndSpan(span, lastErr)
	return ChatResponse{}, fmt.Errorf("chat: %w", lastErr)
}

// ChatStream opens a streaming chat call. The retry policy applies only
// to establishing the stream; once chunks are flowing, mid-stream errors
// are delivered on the channel and terminate it.
func (g *Gateway) ChatStream(ctx context.Context, messages []ChatMessage, opts Options) (<-chan StreamChunk, error) {
	start := time.Now()

	ctx, span := g.tracer.StartLLM(ctx, g.client.ModelName(), "chat_stream")

	var lastErr error
	for attempt := 1; attempt <= g.cfg.RetryAttempts; attempt++ {
		ch, err := g.client.ChatStream(ctx, messages, opts)
		if err == nil {
			g.record("chat_stream", g.client.ModelName(), 0, len(messages), time.Since(start), nil)
			observability.EndSpan(span, nil)
			return ch, nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == g.cfg.RetryAttempts {
			break
		}
		if err := g.sleep(ctx, backoffDelay(attempt, g.cfg.RetryBaseDelay)); err != nil {
			lastErr = err
			break
		}
	}

	g.record("chat_stream", g.client.ModelName(), 0, len(messages), time.Since(start), lastErr)
	observability.EndSpan(span, lastErr)
	return nil, fmt.Errorf("chat stream: %w", lastErr)
}

// Embed returns one vector per input, with the same retry policy as Chat.
func (g *Gateway) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	start := time.Now()

	ctx, span := g.tracer.StartLLM(ctx, g.client.ModelName(), "embed")

	var lastErr error
	for attempt := 1; attempt <= g.cfg.RetryAttempts; attempt++ {
		vecs, err := g.client.Embed(ctx, inputs)
		if err == nil {
			g.record("embed", g.client.ModelName(), 0, len(inputs), time.Since(start), nil)
			observability.EndSpan(span, nil)
			return vecs, nil
		}

		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == g.cfg.RetryAttempts {
			break
		}
		if err := g.sleep(ctx, backoffDelay(attempt, g.cfg.RetryBaseDelay)); err != nil {
			lastErr = err
			break
		}
	}

	g.record("embed", g.client.ModelName(), 0, len(inputs), time.Since(start), lastErr)
	observability.EndSpan(span, lastErr)
	return nil, fmt.Errorf("embed: %w", lastErr)
}

// HealthCheck probes the underlying backend. No retries: the caller
// uses the verdict to decide degraded-mode behavior at startup.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.client.HealthCheck(ctx)
}

// ModelName returns the underlying client's default model identifier.
func (g *Gateway) ModelName() string {
	return g.client.ModelName()
}

// RequestHistory returns a copy of the bounded request log, oldest first.
func (g *Gateway) RequestHistory() []LogEntry {
	return g.reqlog.Entries()
}

func (g *Gateway) record(op, model string, tokens, messages int, d time.Duration, err error) {
	entry := LogEntry{
		Time:      time.Now(),
		Operation: op,
		Model:     model,
		Messages:  messages,
		Tokens:    tokens,
		Duration:  d,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	g.reqlog.Append(entry)

	if g.sink != nil {
		g.sink.RecordLLMRequest(model, op, tokens, d, err)
	}
}
