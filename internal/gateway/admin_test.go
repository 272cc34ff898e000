package gateway

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frejasky/coda/internal/agent"
	"github.com/frejasky/coda/internal/cron"
	"github.com/frejasky/coda/internal/memory"
	"github.com/frejasky/coda/internal/security"
	"github.com/frejasky/coda/internal/skill"
)

const testToken = "secret-token"

// newHandlerServer builds an httptest server around a wired gateway
// router, bypassing the TCP listener.
func newHandlerServer(t *testing.T, g *Gateway) *httptest.Server {
	t.Helper()
	g.config.defaults()
	g.config.Auth = AuthConfig{BearerToken: testToken}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	}
	if g.metrics == nil {
		g.metrics = &Metrics{}
	}
	if g.limiter == nil {
		g.limiter = security.NewRateLimiter(security.RateLimitConfig{})
	}
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func authedReq(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	orch, mem, _, _ := newTestStack(t, &fakeClient{reply: "the answer"})
	g := &Gateway{orchestrator: orch, sessions: mem}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodPost, srv.URL+"/api/chat",
		`{"user_id":"alice","message":"what is the answer"}`)
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out agent.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Content != "the answer" {
		t.Errorf("Content = %q", out.Content)
	}
	if out.SessionID == "" {
		t.Error("SessionID is empty")
	}

	snap := g.metrics.Snapshot()
	if snap.Messages != 1 {
		t.Errorf("messages = %d, want 1", snap.Messages)
	}
	if snap.Completions != 1 {
		t.Errorf("completions = %d, want 1", snap.Completions)
	}
}

func TestHandleChat_BadRequests(t *testing.T) {
	t.Parallel()

	orch, _, _, _ := newTestStack(t, &fakeClient{reply: "x"})
	g := &Gateway{orchestrator: orch}
	srv := newHandlerServer(t, g)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{not json", http.StatusBadRequest},
		{"missing message", `{"user_id":"alice"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := authedReq(t, http.MethodPost, srv.URL+"/api/chat", tt.body)
			_ = resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestHandleChat_NoOrchestrator(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodPost, srv.URL+"/api/chat", `{"message":"hi"}`)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHandleListSessions(t *testing.T) {
	t.Parallel()

	mem := memory.NewManager(memory.ManagerConfig{})
	mem.GetOrCreateSession("alice", "s1")
	if _, err := mem.AddMessage("s1", "user", "hello there", nil); err != nil {
		t.Fatal(err)
	}
	mem.UpdateContext("s1", memory.SessionContext{Topic: "greetings"})

	g := &Gateway{sessions: mem}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/api/sessions", "")
	defer func() { _ = resp.Body.Close() }()

	var sessions []sessionJSON
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len = %d, want 1", len(sessions))
	}
	if sessions[0].ID != "s1" || sessions[0].MessageCount != 1 {
		t.Errorf("session = %+v", sessions[0])
	}
	if sessions[0].Topic != "greetings" {
		t.Errorf("Topic = %q", sessions[0].Topic)
	}
}

func TestHandleListSessions_EmptyIsArray(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/api/sessions", "")
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHandleGetSession(t *testing.T) {
	t.Parallel()

	mem := memory.NewManager(memory.ManagerConfig{})
	mem.GetOrCreateSession("alice", "s1")

	g := &Gateway{sessions: mem}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/api/sessions/s1", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	missing := authedReq(t, http.MethodGet, srv.URL+"/api/sessions/nope", "")
	_ = missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", missing.StatusCode)
	}
}

func TestHandleListErrors(t *testing.T) {
	t.Parallel()

	orch, _, handler, _ := newTestStack(t, &fakeClient{reply: "x"})
	_ = orch
	handler.HandleError(t.Context(), errTest("connection refused"), nil)

	g := &Gateway{errors: handler}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/api/errors", "")
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Stats struct {
			Handled int `json:"handled"`
		} `json:"stats"`
		Records []json.RawMessage `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Stats.Handled != 1 {
		t.Errorf("handled = %d, want 1", out.Stats.Handled)
	}
	if len(out.Records) != 1 {
		t.Errorf("records = %d, want 1", len(out.Records))
	}
}

func TestHandleListSkills(t *testing.T) {
	t.Parallel()

	registry := skill.NewRegistry()
	skill.RegisterBuiltins(registry, &fakeClient{reply: "x"})

	g := &Gateway{skills: registry}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/api/skills", "")
	defer func() { _ = resp.Body.Close() }()

	var defs []skill.DefinitionStatus
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) != 5 {
		t.Errorf("skills = %d, want 5", len(defs))
	}
}

func TestHandleStatus_Payload(t *testing.T) {
	t.Parallel()

	orch, mem, handler, _ := newTestStack(t, &fakeClient{reply: "x"})
	_ = orch
	mem.GetOrCreateSession("alice", "")

	g := &Gateway{sessions: mem, errors: handler, startedAt: time.Now().Add(-time.Minute)}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/status", "")
	defer func() { _ = resp.Body.Close() }()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", status.Sessions)
	}
	if status.Uptime < time.Minute {
		t.Errorf("uptime = %v, want >= 1m", status.Uptime)
	}
	if status.Errors == nil {
		t.Error("errors stats missing")
	}
}

func TestHandleStatus_IncludesJobs(t *testing.T) {
	t.Parallel()

	sched := cron.NewScheduler(slog.New(slog.DiscardHandler))
	if err := sched.RegisterJob(&cron.SweepJob{
		Memory: memory.NewManager(memory.ManagerConfig{}),
		Logger: slog.New(slog.DiscardHandler),
	}); err != nil {
		t.Fatalf("registering job: %v", err)
	}

	g := &Gateway{jobs: sched, startedAt: time.Now()}
	srv := newHandlerServer(t, g)

	resp := authedReq(t, http.MethodGet, srv.URL+"/status", "")
	defer func() { _ = resp.Body.Close() }()

	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(status.Jobs) != 1 || status.Jobs[0].Name != "session_sweep" {
		t.Errorf("jobs = %+v, want one session_sweep entry", status.Jobs)
	}
}

// errTest is a trivial error with a fixed message.
type errTest string

func (e errTest) Error() string { return string(e) }

func TestHandleChat_RateLimited(t *testing.T) {
	t.Parallel()

	orch, _, _, _ := newTestStack(t, &fakeClient{reply: "ok"})
	g := &Gateway{orchestrator: orch}
	g.limiter = security.NewRateLimiter(security.RateLimitConfig{MessagesPerMin: 1})
	srv := newHandlerServer(t, g)

	first := authedReq(t, http.MethodPost, srv.URL+"/api/chat",
		`{"user_id":"alice","message":"hello"}`)
	_ = first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.StatusCode)
	}

	second := authedReq(t, http.MethodPost, srv.URL+"/api/chat",
		`{"user_id":"alice","message":"hello again"}`)
	defer func() { _ = second.Body.Close() }()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.StatusCode)
	}
}

func TestRequestRateLimit(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	g.limiter = security.NewRateLimiter(security.RateLimitConfig{RequestsPerMin: 2})
	srv := newHandlerServer(t, g)

	for range 2 {
		resp := authedReq(t, http.MethodGet, srv.URL+"/api/skills", "")
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	}

	resp := authedReq(t, http.MethodGet, srv.URL+"/api/skills", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}
