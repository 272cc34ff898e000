package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/frejasky/coda/internal/llm"
)

// oaiStreamChunk is a single SSE chunk from the streaming API.
type oaiStreamChunk struct {
	Choices []oaiStreamChoice `json:"choices"`
}

type oaiStreamChoice struct {
	Delta        oaiStreamDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type oaiStreamDelta struct {
	Content string `json:"content,omitempty"`
}

// ChatStream implements llm.Client. The response body is an SSE stream;
// each "data:" line carries one chunk, and "[DONE]" ends the stream.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (<-chan llm.StreamChunk, error) {
	resp, err := p.doRequest(ctx, "/chat/completions", p.buildRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, handleErrorResponse(resp)
	}

	return p.parseSSEStream(ctx, resp.Body), nil
}

// parseSSEStream reads the response body line by line and emits chunks
// on the returned channel. A parse failure on an individual line is
// logged and skipped, not fatal to the stream. The channel is closed
// on "[DONE]", end of body, or context cancellation.
func (p *Provider) parseSSEStream(ctx context.Context, body io.ReadCloser) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, 16)

	go func() {
		defer close(ch)
		defer func() { _ = body.Close() }()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				ch <- llm.StreamChunk{Err: err}
				return
			}

			// Some compatible servers omit the space after "data:".
			line := scanner.Text()
			var data string
			switch {
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimPrefix(line, "data:")
			default:
				continue
			}

			if data == "[DONE]" {
				ch <- llm.StreamChunk{Done: true}
				return
			}

			var chunk oaiStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				p.logger.Warn("skipping malformed stream line", "error", err)
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				ch <- llm.StreamChunk{Content: choice.Delta.Content}
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				ch <- llm.StreamChunk{Done: true}
				return
			}
		}

		// Scanner error (connection drop, etc.).
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				ch <- llm.StreamChunk{Err: ctx.Err()}
			} else {
				ch <- llm.StreamChunk{Err: fmt.Errorf("%w: stream read error: %w", llm.ErrBackendDown, err)}
			}
		}
	}()

	return ch
}
