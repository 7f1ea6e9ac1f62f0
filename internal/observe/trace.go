package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/flux"

// Tracer returns the Flux tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must end it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// AttemptInfo identifies one capture attempt.
type AttemptInfo struct {
	Flow  string
	Token string
	App   string
}

type attemptKey struct{}

// StartAttempt starts the root span of a capture attempt and remembers info
// in the returned context, so that [Logger] tags every line with the flow
// and token.
func StartAttempt(ctx context.Context, info AttemptInfo) (context.Context, trace.Span) {
	ctx = context.WithValue(ctx, attemptKey{}, info)
	return StartSpan(ctx, "capture.attempt", trace.WithAttributes(
		attribute.String("flow", info.Flow),
		attribute.String("token", info.Token),
		attribute.String("app", info.App),
	))
}

// Attempt returns the attempt stored by [StartAttempt].
func Attempt(ctx context.Context) (AttemptInfo, bool) {
	info, ok := ctx.Value(attemptKey{}).(AttemptInfo)
	return info, ok
}

// CorrelationID returns the trace ID of the span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger tagged with the attempt's flow and token
// and the trace and span ids found in ctx.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if info, ok := Attempt(ctx); ok {
		l = l.With(slog.String("flow", info.Flow), slog.String("token", info.Token))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
