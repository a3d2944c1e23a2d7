package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores id in ctx, generating one when id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the default logger enriched with the request id.
func FromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}
