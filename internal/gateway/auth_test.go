package gateway

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAuthServer(t *testing.T, cfg AuthConfig) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(authMiddleware(cfg, logger)(inner))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, configure func(*http.Request)) int {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if configure != nil {
		configure(req)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestAuthMiddleware_Bearer(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t, AuthConfig{BearerToken: "good-token"})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer good-token", http.StatusOK},
		{"wrong token", "Bearer bad-token", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token good-token", http.StatusUnauthorized},
		{"token is prefix", "Bearer good", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := do(t, srv, func(r *http.Request) {
				if tt.header != "" {
					r.Header.Set("Authorization", tt.header)
				}
			})
			if got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_Basic(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t, AuthConfig{BasicUser: "admin", BasicPass: "hunter2"})

	tests := []struct {
		name       string
		user, pass string
		want       int
	}{
		{"valid credentials", "admin", "hunter2", http.StatusOK},
		{"wrong password", "admin", "wrong", http.StatusUnauthorized},
		{"wrong user", "root", "hunter2", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := do(t, srv, func(r *http.Request) {
				r.SetBasicAuth(tt.user, tt.pass)
			})
			if got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_BearerPreferredOverBasic(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t, AuthConfig{
		BearerToken: "tok",
		BasicUser:   "admin",
		BasicPass:   "hunter2",
	})

	// Both methods configured: each works on its own.
	if got := do(t, srv, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer tok")
	}); got != http.StatusOK {
		t.Errorf("bearer status = %d, want 200", got)
	}
	if got := do(t, srv, func(r *http.Request) {
		r.SetBasicAuth("admin", "hunter2")
	}); got != http.StatusOK {
		t.Errorf("basic status = %d, want 200", got)
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  AuthConfig
		want bool
	}{
		{"nothing", AuthConfig{}, false},
		{"bearer only", AuthConfig{BearerToken: "t"}, true},
		{"basic only", AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{"basic user without pass", AuthConfig{BasicUser: "u"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstantTimeEqual(t *testing.T) {
	t.Parallel()

	if !constantTimeEqual("abc", "abc") {
		t.Error("equal strings should match")
	}
	if constantTimeEqual("abc", "abd") {
		t.Error("different strings should not match")
	}
	if constantTimeEqual("abc", "abcd") {
		t.Error("different lengths should not match")
	}
}
