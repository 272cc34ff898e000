package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/frejasky/coda/internal/agent"
)

// wsFrame is one server-to-client frame on the chat socket.
type wsFrame struct {
	Type      string `json:"type"` // "chunk", "done", or "error"
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleChatSocket streams agent responses over a WebSocket. Each text
// message from the client is an agent.Request JSON document; the reply
// is a sequence of "chunk" frames closed by a "done" frame.
func (g *Gateway) handleChatSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.orchestrator == nil {
			http.Error(w, "agent unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		g.metrics.RecordStream()
		ctx := r.Context()

		for {
			kind, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if kind != websocket.MessageText {
				continue
			}

			var req agent.Request
			if err := json.Unmarshal(data, &req); err != nil {
				g.sendFrame(ctx, conn, wsFrame{Type: "error", Error: "invalid request"})
				continue
			}
			if req.Message == "" {
				g.sendFrame(ctx, conn, wsFrame{Type: "error", Error: "message is required"})
				continue
			}
			if req.UserID == "" {
				req.UserID = "anonymous"
			}
			if err := g.limiter.Allow("message"); err != nil {
				g.sendFrame(ctx, conn, wsFrame{Type: "error", Error: "rate limit exceeded"})
				continue
			}

			g.metrics.RecordMessage()
			g.streamResponse(ctx, conn, req)
		}
	}
}

// streamResponse forwards one streamed agent reply to the socket.
func (g *Gateway) streamResponse(ctx context.Context, conn *websocket.Conn, req agent.Request) {
	start := time.Now()
	tokens := 0

	for chunk := range g.orchestrator.Stream(ctx, req) {
		tokens += len(chunk) / 4
		if !g.sendFrame(ctx, conn, wsFrame{Type: "chunk", Content: chunk}) {
			return
		}
	}

	g.metrics.RecordCompletion(tokens, time.Since(start))
	g.sendFrame(ctx, conn, wsFrame{Type: "done", SessionID: req.SessionID})
}

// sendFrame writes one frame, reporting whether the socket is still
// usable.
func (g *Gateway) sendFrame(ctx context.Context, conn *websocket.Conn, frame wsFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		g.logger.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}
