// Package telemetry annotates the active trace span for outbound provider calls.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the oauth and publish layers.
const (
	KeyProvider  = attribute.Key("gtm.provider")
	KeyOperation = attribute.Key("gtm.operation")
	KeyScheme    = attribute.Key("gtm.auth_scheme")
	KeyStatus    = attribute.Key("http.response.status_code")
	KeyFallback  = attribute.Key("gtm.fallback")
)

// AddRequestAttributes sets attrs on the current span. Without a recording
// span the attributes are logged at debug level instead.
func AddRequestAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
		return
	}

	logAttrs := make([]slog.Attr, 0, len(attrs)+3)
	for _, attr := range attrs {
		logAttrs = append(logAttrs, slog.Any(string(attr.Key), attr.Value.AsInterface()))
	}
	logAttrs = append(logAttrs, slog.Bool("observability.fallback", true))
	sc := span.SpanContext()
	if sc.HasTraceID() {
		logAttrs = append(logAttrs, slog.String("trace_id", sc.TraceID().String()))
	}
	if sc.HasSpanID() {
		logAttrs = append(logAttrs, slog.String("span_id", sc.SpanID().String()))
	}
	logger.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "provider call", logAttrs...)
}
