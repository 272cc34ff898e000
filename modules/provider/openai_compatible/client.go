package openaicompat

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

// OpenAI wire types for JSON serialization. Tool calling is not part
// of the chat surface, so the shapes cover text completions only.

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Stream      bool         `json:"stream,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	TopP        *float64     `json:"top_p,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Model   string      `json:"model"`
	Created int64       `json:"created"`
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type oaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaiEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// buildRequest converts messages and options into the wire shape.
func (p *Provider) buildRequest(messages []llm.ChatMessage, opts llm.Options, stream bool) oaiRequest {
	wire := make([]oaiMessage, len(messages))
	for i, m := range messages {
		wire[i] = oaiMessage{Role: string(m.Role), Content: m.Content}
	}

	model := opts.Model
	if model == "" {
		model = p.config.Model
	}
	maxTokens := opts.NumPredict
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	return oaiRequest{
		Model:       model,
		Messages:    wire,
		Stream:      stream,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
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
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}

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
	resp, err := p.doRequest(ctx, "/chat/completions", p.buildRequest(messages, opts, false))
	if err != nil {
		return llm.ChatResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return llm.ChatResponse{}, handleErrorResponse(resp)
	}

	var wire oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return llm.ChatResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("%w: response has no choices", llm.ErrBadRequest)
	}

	choice := wire.Choices[0]
	return llm.ChatResponse{
		Model:     wire.Model,
		CreatedAt: time.Unix(wire.Created, 0),
		Message: llm.ChatMessage{
			Role:    llm.Role(choice.Message.Role),
			Content: choice.Message.Content,
		},
		PromptTokens:     wire.Usage.PromptTokens,
		CompletionTokens: wire.Usage.CompletionTokens,
	}, nil
}

// Embed implements llm.Client. One request covers the whole batch.
func (p *Provider) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	model := p.config.EmbedModel
	if model == "" {
		model = p.config.Model
	}

	resp, err := p.doRequest(ctx, "/embeddings", oaiEmbedRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var wire oaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vectors := make([][]float64, len(wire.Data))
	for i, d := range wire.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// HealthCheck implements llm.Client. It probes the model listing
// endpoint with a short timeout.
func (p *Provider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
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
