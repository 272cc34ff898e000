package gateway

import (
	"context"
	"testing"

	"github.com/frejasky/coda/internal/agent"
	"github.com/frejasky/coda/internal/llm"
	"github.com/frejasky/coda/internal/memory"
	"github.com/frejasky/coda/internal/recovery"
	"github.com/frejasky/coda/internal/skill"
)

// fakeClient is a minimal scriptable backend for gateway tests.
type fakeClient struct {
	reply   string
	failErr error
}

func (c *fakeClient) Chat(_ context.Context, _ []llm.ChatMessage, _ llm.Options) (llm.ChatResponse, error) {
	if c.failErr != nil {
		return llm.ChatResponse{}, c.failErr
	}
	return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: c.reply}}, nil
}

func (c *fakeClient) ChatStream(_ context.Context, _ []llm.ChatMessage, _ llm.Options) (<-chan llm.StreamChunk, error) {
	if c.failErr != nil {
		return nil, c.failErr
	}
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Content: c.reply}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (c *fakeClient) Embed(_ context.Context, inputs []string) ([][]float64, error) {
	if c.failErr != nil {
		return nil, c.failErr
	}
	out := make([][]float64, len(inputs))
	for i := range out {
		out[i] = []float64{1}
	}
	return out, nil
}

func (c *fakeClient) HealthCheck(_ context.Context) error { return c.failErr }
func (c *fakeClient) ModelName() string                   { return "fake" }

// newTestStack builds a full agent stack around the fake client.
func newTestStack(t *testing.T, client llm.Client) (*agent.Orchestrator, *memory.Manager, *recovery.Handler, *skill.Registry) {
	t.Helper()
	mem := memory.NewManager(memory.ManagerConfig{}, memory.WithVectorizer(memory.NewHashVectorizer(0)))
	handler := recovery.NewHandler()
	registry := skill.NewRegistry()
	orch := agent.New(client, registry, mem, handler)
	return orch, mem, handler, registry
}
