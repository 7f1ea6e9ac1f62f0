package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// snapshot collects reader and indexes the result by instrument name.
func snapshot(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

// counter sums the data points of the named counter that carry every
// attribute in attrs.
func counter(t *testing.T, data map[string]metricdata.Aggregation, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data[name].(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s is %T, want Sum[int64]", name, data[name])
	}
	var total int64
next:
	for _, dp := range sum.DataPoints {
		for _, kv := range attrs {
			if v, ok := dp.Attributes.Value(kv.Key); !ok || v.AsString() != kv.Value.AsString() {
				continue next
			}
		}
		total += dp.Value
	}
	return total
}

func TestAttemptCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAttemptStarted(ctx, "dictate")
	m.RecordAttemptStarted(ctx, "dictate")
	m.RecordAttemptStarted(ctx, "clip")
	m.RecordAttemptFinished(ctx, "dictate", "delivered")
	m.RecordAttemptFinished(ctx, "clip", "failed")
	m.RecordFailure(ctx, "clip", "TranscriptionTimeout")
	m.RecordDelivery(ctx, "clip", "clipboard")
	m.RecordProviderRequest(ctx, "openai", "llm", "ok")
	m.RecordProviderRequest(ctx, "openai", "llm", "ok")
	m.RecordProviderRequest(ctx, "whisper", "stt", "error")
	m.RecordProviderError(ctx, "whisper", "stt")
	m.RecordBreakerTransition(ctx, "whisper", "open")

	data := snapshot(t, reader)
	tests := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int64
	}{
		{"flux.attempts.started", []attribute.KeyValue{Attr("flow", "dictate")}, 2},
		{"flux.attempts.started", nil, 3},
		{"flux.attempts.active", nil, 1},
		{"flux.attempts.outcomes", []attribute.KeyValue{Attr("outcome", "delivered")}, 1},
		{"flux.attempts.failures", []attribute.KeyValue{Attr("flow", "clip"), Attr("reason", "TranscriptionTimeout")}, 1},
		{"flux.delivery.outcomes", []attribute.KeyValue{Attr("outcome", "clipboard")}, 1},
		{"flux.provider.requests", []attribute.KeyValue{Attr("provider", "openai"), Attr("status", "ok")}, 2},
		{"flux.provider.requests", []attribute.KeyValue{Attr("kind", "stt")}, 1},
		{"flux.provider.errors", []attribute.KeyValue{Attr("provider", "whisper")}, 1},
		{"flux.provider.breaker_transitions", []attribute.KeyValue{Attr("state", "open")}, 1},
	}
	for _, tc := range tests {
		if got := counter(t, data, tc.name, tc.attrs...); got != tc.want {
			t.Errorf("%s%v = %d, want %d", tc.name, tc.attrs, got, tc.want)
		}
	}
}

func TestDurationHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	hists := map[string]metric.Float64Histogram{
		"flux.recording.duration":     m.RecordingDuration,
		"flux.transcription.duration": m.TranscriptionDuration,
		"flux.enhancement.duration":   m.EnhancementDuration,
	}
	for _, h := range hists {
		RecordDuration(ctx, h, 120*time.Millisecond)
		RecordDuration(ctx, h, 450*time.Millisecond)
	}
	m.HTTPRequestDuration.Record(ctx, 0.05, metric.WithAttributes(Attr("method", "GET"), Attr("path", "/healthz")))

	data := snapshot(t, reader)
	for name := range hists {
		h, ok := data[name].(metricdata.Histogram[float64])
		if !ok || len(h.DataPoints) != 1 {
			t.Errorf("%s: %T with unexpected data points", name, data[name])
			continue
		}
		if dp := h.DataPoints[0]; dp.Count != 2 || dp.Sum < 0.569 || dp.Sum > 0.571 {
			t.Errorf("%s: count %d sum %v, want 2 and 0.57", name, dp.Count, dp.Sum)
		}
	}
	if h, ok := data["flux.http.request.duration"].(metricdata.Histogram[float64]); !ok || h.DataPoints[0].Count != 1 {
		t.Errorf("http duration = %+v", data["flux.http.request.duration"])
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
