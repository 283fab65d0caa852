// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// WithTraceContext returns a logger enriched with trace_id and span_id when
// the context carries a valid, sampled span. Without one it returns the base
// logger unchanged, so callers can use it unconditionally.
func WithTraceContext(ctx context.Context) zerolog.Logger {
	l := logger()
	if ctx == nil {
		return l
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	builder := l.With().Str("trace_id", spanCtx.TraceID().String())
	if spanCtx.HasSpanID() {
		builder = builder.Str("span_id", spanCtx.SpanID().String())
	}
	return builder.Logger()
}
