// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names, one per instrumented package.
const (
	TracerGraph   = "wikigraph.graph"
	TracerBuilder = "wikigraph.builder"
)

// StartSpan starts spanName on the tracer of component, tagged with attrs.
//
// Example:
//
//	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerGraph, "Adjacency.Furthest",
//	    attribute.Int64("graph.start_id", int64(start)))
//	defer span.End()
func StartSpan(ctx context.Context, component, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(component).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError attaches err to span.
//
// Description:
//
//	Cancellation and deadline errors are recorded as a "cancelled" event
//	and leave the span status unset: a user aborting a long traversal is
//	not a failure of the graph. Any other error marks the span failed.
//	Nil spans and nil errors are ignored.
//
// Thread Safety: Safe for concurrent use.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		span.AddEvent("cancelled", trace.WithAttributes(attribute.String("reason", err.Error())))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace ID carried by ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// SpanID returns the hex span ID carried by ctx, or "".
func SpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}

// LoggerWithTrace adds trace_id and span_id to logger when ctx carries a
// sampled span. Request logs and query diagnostics use it so they can be
// joined with traces.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	traceID := TraceID(ctx)
	if traceID == "" {
		return logger
	}
	return logger.With(
		slog.String("trace_id", traceID),
		slog.String("span_id", SpanID(ctx)),
	)
}
