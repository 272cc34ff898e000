package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/frejasky/coda/internal/llm"
)

// Ollama wire types for JSON serialization.

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	Options   *wireOptions  `json:"options,omitempty"`
	KeepAlive string        `json:"keep_alive,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	CreatedAt       time.Time   `json:"created_at"`
	Message         wireMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// buildChatRequest converts messages and options into the wire shape.
func (p *Provider) buildChatRequest(messages []llm.ChatMessage, opts llm.Options, stream bool) chatRequest {
	wire := make([]wireMessage, len(messages))
	for i, m := range messages {
		wire[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}

	model := opts.Model
	if model == "" {
		model = p.config.Model
	}
	keepAlive := opts.KeepAlive
	if keepAlive == "" {
		keepAlive = p.config.KeepAlive
	}

	req := chatRequest{
		Model:     model,
		Messages:  wire,
		Stream:    stream,
		KeepAlive: keepAlive,
	}
	if opts.Temperature != nil || opts.TopP != nil || opts.NumPredict > 0 {
		req.Options = &wireOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.NumPredict,
		}
	}
	return req
}

// doRequest executes an HTTP POST against the given API path.
func (p *Provider) doRequest(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// Do not classify caller cancellation/timeout as backend failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", llm.ErrBackendDown, err)
	}
	return resp, nil
}

// Chat implements llm.Client.
func (p *Provider) Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (llm.ChatResponse, error) {
	resp, err := p.doRequest(ctx, "/api/chat", p.buildChatRequest(messages, opts, false))
	if err != nil {
		return llm.ChatResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return llm.ChatResponse{}, handleErrorResponse(resp)
	}

	var wire chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return llm.ChatResponse{}, fmt.Errorf("decode response: %w", err)
	}

	return llm.ChatResponse{
		Model:     wire.Model,
		CreatedAt: wire.CreatedAt,
		Message: llm.ChatMessage{
			Role:    llm.Role(wire.Message.Role),
			Content: wire.Message.Content,
		},
		PromptTokens:     wire.PromptEvalCount,
		CompletionTokens: wire.EvalCount,
	}, nil
}

// Embed implements llm.Client. One request covers the whole batch.
func (p *Provider) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	resp, err := p.doRequest(ctx, "/api/embed", embedRequest{
		Model: p.config.EmbedModel,
		Input: inputs,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var wire embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wire.Embeddings, nil
}

// HealthCheck implements llm.Client. It probes the model listing
// endpoint with a short timeout.
func (p *Provider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", llm.ErrBackendDown, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", llm.ErrBackendDown, resp.StatusCode)
	}
	return nil
}

// ModelName implements llm.Client.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// maxErrorBodySize caps how much of an error response body is read to
// prevent memory spikes.
const maxErrorBodySize = 4096

// handleErrorResponse maps HTTP error status codes to sentinel errors.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", llm.ErrRateLimit, body)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", llm.ErrBackendDown, resp.StatusCode, body)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", llm.ErrAuthentication, resp.StatusCode, body)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", llm.ErrBadRequest, resp.StatusCode, body)
	}
}
