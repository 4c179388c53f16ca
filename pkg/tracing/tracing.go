// Package tracing starts spans around repository and query operations.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer stays nil until a provider is installed; spans are then no-ops.
var tracer trace.Tracer

// Use installs t for every later StartSpan. A nil t turns tracing off.
func Use(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a span named after the operation, typically "Type.Method".
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

func Table(name string) attribute.KeyValue {
	return attribute.String("db.sql.table", name)
}

// Chain names the historical chain a span operates on.
func Chain(key string) attribute.KeyValue {
	return attribute.String("fern.chain", key)
}

// RecordError marks the span as failed. Nil errors and spans are ignored.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the id of the sampled trace carried by ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if tracer == nil || !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
