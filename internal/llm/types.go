// Package llm defines the client interface for communicating with an
// Ollama-compatible chat-completion backend, plus the Gateway wrapper
// that adds retry, response caching, and request logging on top of a
// raw client.
package llm

import "time"

// Role identifies the sender of a chat message.
type Role string

// Role constants for conversation messages.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single message in a conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single chat or embedding call. Zero values mean
// "use the client's configured defaults".
type Options struct {
	// Model overrides the client's default model.
	Model string

	// Temperature controls sampling randomness.
	Temperature *float64

	// TopP controls nucleus sampling.
	TopP *float64

	// NumPredict caps the number of generated tokens.
	NumPredict int

	// KeepAlive controls how long the backend keeps the model loaded
	// (e.g. "5m"). Passed through to the wire request.
	KeepAlive string
}

// ChatResponse is the result of a complete (non-streaming) chat call.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   ChatMessage

	// PromptTokens and CompletionTokens are the backend's token counts
	// (prompt_eval_count / eval_count). Zero when the backend omits them.
	PromptTokens     int
	CompletionTokens int

	// Duration is the total wall-clock time of the call, including retries.
	Duration time.Duration
}

// TotalTokens returns the combined prompt and completion token count.
func (r ChatResponse) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// StreamChunk is one piece of a streaming chat response. The stream
// channel is closed after the chunk with Done set (or after an Err chunk).
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}
