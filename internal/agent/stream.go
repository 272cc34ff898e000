package agent

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/frejasky/coda/internal/llm"
)

// Stream handles one user message as a live text stream: the same
// memory bookkeeping as Process, but chunks pass through directly from
// the LLM with no skill routing. Any failure yields one final fallback
// string and ends the stream; the returned channel always closes and
// never surfaces an error. The stream is finite and not restartable.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan string {
	out := make(chan string, 16)

	go func() {
		defer close(out)

		ctx, span := o.tracer.Start(ctx, "agent.stream",
			attribute.String("user.id", req.UserID))
		defer span.End()

		session := o.memory.GetOrCreateSession(req.UserID, req.SessionID)
		if _, err := o.memory.AddMessage(session.ID, llm.RoleUser, req.Message, nil); err != nil {
			o.logger.Error("stream memory write failed", "error", err)
			out <- offlineFallback
			return
		}

		if o.demoMode {
			content := demoResponse(req.Message)
			out <- content
			o.recordAssistant(session.ID, content)
			return
		}

		window, err := o.memory.GetContextWindow(session.ID, 0)
		if err != nil {
			out <- offlineFallback
			return
		}

		chunks, err := o.client.ChatStream(ctx, window, llm.Options{})
		if err != nil {
			o.logger.Error("stream connection failed", "error", err)
			o.errors.HandleError(ctx, err, map[string]string{"service": breakerService})
			o.errors.RecordFailure(breakerService)
			out <- offlineFallback
			return
		}

		var full strings.Builder
		for chunk := range chunks {
			if chunk.Err != nil {
				o.logger.Warn("stream interrupted", "error", chunk.Err)
				out <- offlineFallback
				o.errors.RecordFailure(breakerService)
				return
			}
			if chunk.Content != "" {
				full.WriteString(chunk.Content)
				out <- chunk.Content
			}
			if chunk.Done {
				break
			}
		}

		o.errors.RecordSuccess(breakerService)
		o.recordAssistant(session.ID, full.String())
	}()

	return out
}

// recordAssistant appends the assistant turn, logging rather than
// failing when the session vanished mid-stream.
func (o *Orchestrator) recordAssistant(sessionID, content string) {
	if content == "" {
		return
	}
	if _, err := o.memory.AddMessage(sessionID, llm.RoleAssistant, content, nil); err != nil {
		o.logger.Error("assistant turn not recorded", "error", err)
	}
}
