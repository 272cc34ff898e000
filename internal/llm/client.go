package llm

import "context"

// Client is the interface for communicating with a chat-completion
// backend. The concrete implementation lives in modules/provider/ollama
// and also implements core.Module for lifecycle management.
type Client interface {
	// Chat sends the full message list and blocks until a complete
	// response is received.
	Chat(ctx context.Context, messages []ChatMessage, opts Options) (ChatResponse, error)

	// ChatStream sends the message list and returns a channel of chunks.
	// Initial connection errors are returned directly. Mid-stream errors
	// are delivered via StreamChunk.Err. The stream is finite and not
	// restartable; a fresh call creates a new stream.
	ChatStream(ctx context.Context, messages []ChatMessage, opts Options) (<-chan StreamChunk, error)

	// Embed returns one vector per input text.
	Embed(ctx context.Context, inputs []string) ([][]float64, error)

	// HealthCheck probes the backend with a short timeout. A nil error
	// means the backend is reachable.
	HealthCheck(ctx context.Context) error

	// ModelName returns the identifier of the default model.
	ModelName() string
}
