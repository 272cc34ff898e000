package security

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newRedactingLogger(r *Redactor) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner, r)), &buf
}

func TestRedactingHandler_RedactsMessage(t *testing.T) {
	t.Parallel()

	logger, buf := newRedactingLogger(NewRedactor())
	logger.Info("key is sk-abcdefghijklmnopqrstuvwxyz")

	output := buf.String()
	if strings.Contains(output, "sk-abcdefghijklmnopqrstuvwxyz") {
		t.Errorf("secret found in log output: %s", output)
	}
	if !strings.Contains(output, RedactPlaceholder) {
		t.Errorf("expected placeholder in output: %s", output)
	}
}

func TestRedactingHandler_RedactsAttributes(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("hunter2-token-value")
	logger, buf := newRedactingLogger(r)

	logger.Info("auth check", "token", "hunter2-token-value", "safe", "visible")

	output := buf.String()
	if strings.Contains(output, "hunter2-token-value") {
		t.Errorf("secret found in attributes: %s", output)
	}
	if !strings.Contains(output, "visible") {
		t.Errorf("safe value missing from output: %s", output)
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("persistent-secret")
	logger, buf := newRedactingLogger(r)

	logger.With("api_key", "persistent-secret").Info("startup")

	output := buf.String()
	if strings.Contains(output, "persistent-secret") {
		t.Errorf("secret found in WithAttrs output: %s", output)
	}
}

func TestRedactingHandler_GroupAttr(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("nested-secret")
	logger, buf := newRedactingLogger(r)

	logger.WithGroup("http").Info("request",
		slog.Group("auth",
			slog.String("token", "nested-secret"),
			slog.String("path", "/api/chat"),
		),
	)

	output := buf.String()
	if strings.Contains(output, "nested-secret") {
		t.Errorf("secret found in group attribute: %s", output)
	}
	if !strings.Contains(output, "/api/chat") {
		t.Errorf("safe group value missing: %s", output)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	inner := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	handler := NewRedactingHandler(inner, NewRedactor())

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled with warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled with warn level")
	}
}

func TestRedactingHandler_PassthroughWithoutSecrets(t *testing.T) {
	t.Parallel()

	logger, buf := newRedactingLogger(NewRedactor())
	logger.Info("normal message", "key", "value")

	output := buf.String()
	if strings.Contains(output, RedactPlaceholder) {
		t.Errorf("unexpected redaction in output: %s", output)
	}
	if !strings.Contains(output, "normal message") {
		t.Errorf("message missing from output: %s", output)
	}
}
