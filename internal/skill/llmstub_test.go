package skill

import (
	"context"

	"github.com/frejasky/coda/internal/llm"
)

// stubClient is a canned llm.Client for executor tests.
type stubClient struct {
	reply  string
	err    error
	onChat func(messages []string)
}

func (s stubClient) Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (llm.ChatResponse, error) {
	if s.onChat != nil {
		texts := make([]string, len(messages))
		for i, m := range messages {
			texts[i] = m.Content
		}
		s.onChat(texts)
	}
	if s.err != nil {
		return llm.ChatResponse{}, s.err
	}
	return llm.ChatResponse{
		Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: s.reply},
	}, nil
}

func (s stubClient) ChatStream(ctx context.Context, messages []llm.ChatMessage, opts llm.Options) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Content: s.reply}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, s.err
}

func (s stubClient) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	out := make([][]float64, len(inputs))
	for i := range out {
		out[i] = []float64{1}
	}
	return out, s.err
}

func (s stubClient) HealthCheck(ctx context.Context) error { return s.err }
func (s stubClient) ModelName() string                     { return "stub" }
