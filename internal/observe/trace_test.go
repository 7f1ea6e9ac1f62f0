package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracer installs an in-memory tracer provider for the test. Tests
// using it must not run in parallel.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs redirects the default logger into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestStartAttempt(t *testing.T) {
	exp := useTestTracer(t)
	buf := captureLogs(t)

	info := AttemptInfo{Flow: "dictate", Token: "tok-1", App: "editor"}
	ctx, span := StartAttempt(context.Background(), info)

	got, ok := Attempt(ctx)
	if !ok || got != info {
		t.Errorf("Attempt = %+v, %v", got, ok)
	}
	if cid := CorrelationID(ctx); len(cid) != 32 {
		t.Errorf("correlation id %q, want 32 hex chars", cid)
	}

	Logger(ctx).Info("hello")
	line := buf.String()
	for _, want := range []string{"flow=dictate", "token=tok-1", "trace_id=", "span_id="} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}

	span.End()
	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "capture.attempt" {
		t.Fatalf("spans = %v", spans)
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs["flow"] != "dictate" || attrs["token"] != "tok-1" || attrs["app"] != "editor" {
		t.Errorf("span attributes = %v", attrs)
	}
}

func TestLogger_NoAttempt(t *testing.T) {
	buf := captureLogs(t)

	Logger(context.Background()).Info("plain")
	if line := buf.String(); strings.Contains(line, "trace_id") || strings.Contains(line, "token=") {
		t.Errorf("unexpected attributes in %q", line)
	}
	if CorrelationID(context.Background()) != "" {
		t.Error("CorrelationID without span is not empty")
	}
}

func TestCorrelationID_Unique(t *testing.T) {
	useTestTracer(t)

	ids := make(map[string]struct{}, 50)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "unique")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := ids[cid]; dup {
			t.Fatalf("duplicate correlation id %s", cid)
		}
		ids[cid] = struct{}{}
	}
}
