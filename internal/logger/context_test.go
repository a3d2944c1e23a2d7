package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	id := RequestID(ctx)
	if len(id) != 36 {
		t.Fatalf("expected generated uuid, got %q", id)
	}

	ctx = WithRequestID(context.Background(), "fixed")
	if RequestID(ctx) != "fixed" {
		t.Fatalf("RequestID() = %q, want fixed", RequestID(ctx))
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { SetLogger(prev) })

	FromContext(WithRequestID(context.Background(), "req-1")).Info("hello")
	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("log line missing request id: %s", buf.String())
	}
}
