package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/frejasky/coda/internal/llm"
)

// ChatStream implements llm.Client. The response body is newline-delimited
// JSON; each line carries one chunk, and the line with done=true ends the
// stream.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (<-chan llm.StreamChunk, error) {
	resp, err := p.doRequest(ctx, "/api/chat", p.buildChatRequest(messages, opts, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, handleErrorResponse(resp)
	}

	return p.parseNDJSONStream(ctx, resp.Body), nil
}

// parseNDJSONStream reads the response body line by line and emits
// chunks on the returned channel. A parse failure on an individual line
// is logged and skipped, not fatal to the stream. The channel is closed
// when the backend marks done, the body ends, or the context is cancelled.
func (p *Provider) parseNDJSONStream(ctx context.Context, body io.ReadCloser) <-chan llm.StreamChunk {
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

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				p.logger.Warn("skipping malformed stream line", "error", err)
				continue
			}

			if chunk.Message.Content != "" {
				ch <- llm.StreamChunk{Content: chunk.Message.Content}
			}
			if chunk.Done {
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
