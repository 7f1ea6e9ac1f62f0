package app_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/flux/internal/app"
	"github.com/MrWong99/flux/internal/config"
	"github.com/MrWong99/flux/internal/observe"
	"github.com/MrWong99/flux/internal/resilience"
	"github.com/MrWong99/flux/pkg/provider/llm"
	llmmock "github.com/MrWong99/flux/pkg/provider/llm/mock"
	"github.com/MrWong99/flux/pkg/provider/stt"
	sttmock "github.com/MrWong99/flux/pkg/provider/stt/mock"
	"github.com/MrWong99/flux/pkg/types"
)

func testRegistry(backends map[string]*sttmock.Transcriber) *config.Registry {
	reg := config.NewRegistry()
	for name, tr := range backends {
		reg.RegisterSTT(name, func(config.ProviderEntry) (stt.Transcriber, error) { return tr, nil })
	}
	reg.RegisterLLM("model", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	return reg
}

func testMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	met, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return met, reader
}

func sumCounter(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs map[string]string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
		dps:
			for _, dp := range sum.DataPoints {
				for k, want := range attrs {
					if v, ok := dp.Attributes.Value(attribute.Key(k)); !ok || v.AsString() != want {
						continue dps
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

var clip = types.AudioClip{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}

func TestBuildProviders_PrimaryOnly(t *testing.T) {
	t.Parallel()

	met, reader := testMetrics(t)
	primary := &sttmock.Transcriber{Result: stt.Transcript{Text: "hi"}}
	p, err := app.BuildProviders(config.ProvidersConfig{
		STT: config.ProviderEntry{Name: "local"},
	}, testRegistry(map[string]*sttmock.Transcriber{"local": primary}), met)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if p.LLM != nil {
		t.Error("LLM built without configuration")
	}

	res, err := p.STT.Transcribe(context.Background(), clip)
	if err != nil || res.Text != "hi" {
		t.Fatalf("Transcribe = %q, %v", res.Text, err)
	}
	if got := sumCounter(t, reader, "flux.provider.requests", map[string]string{"provider": "local", "status": "ok"}); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}

	primary.HealthErr = errors.New("down")
	hc, ok := p.STT.(stt.HealthChecker)
	if !ok {
		t.Fatal("metered transcriber hides the health check")
	}
	if err := hc.Health(context.Background()); err == nil {
		t.Error("Health did not forward the backend error")
	}
}

func TestBuildProviders_FailsOver(t *testing.T) {
	t.Parallel()

	met, reader := testMetrics(t)
	primary := &sttmock.Transcriber{Err: errors.New("connection refused")}
	backup := &sttmock.Transcriber{Result: stt.Transcript{Text: "from backup"}}
	p, err := app.BuildProviders(config.ProvidersConfig{
		STT:         config.ProviderEntry{Name: "local"},
		STTFallback: []config.ProviderEntry{{Name: "cloud"}},
		LLM:         config.ProviderEntry{Name: "model"},
	}, testRegistry(map[string]*sttmock.Transcriber{"local": primary, "cloud": backup}), met)
	if err != nil {
		t.Fatalf("BuildProviders: %v", err)
	}
	if p.LLM == nil {
		t.Fatal("LLM not built")
	}

	for range 5 {
		res, err := p.STT.Transcribe(context.Background(), clip)
		if err != nil || res.Text != "from backup" {
			t.Fatalf("Transcribe = %q, %v", res.Text, err)
		}
	}

	// The primary's breaker opens after its fifth consecutive failure.
	if got := sumCounter(t, reader, "flux.provider.errors", map[string]string{"provider": "local"}); got != 5 {
		t.Errorf("primary errors = %d, want 5", got)
	}
	if got := sumCounter(t, reader, "flux.provider.breaker_transitions", map[string]string{"provider": "local", "state": "open"}); got != 1 {
		t.Errorf("open transitions = %d, want 1", got)
	}

	if _, err := p.STT.Transcribe(context.Background(), clip); err != nil {
		t.Fatalf("Transcribe with open primary: %v", err)
	}
	if primary.CallCount() != 5 {
		t.Errorf("primary called %d times, want 5 (breaker open)", primary.CallCount())
	}
	r, ok := p.STT.(resilience.Reporter)
	if !ok {
		t.Fatal("fallback transcriber does not report breaker states")
	}
	if st := r.States(); st["local"] != resilience.StateOpen || st["cloud"] != resilience.StateClosed {
		t.Errorf("States() = %v", st)
	}
}

func TestBuildProviders_UnknownName(t *testing.T) {
	t.Parallel()

	_, err := app.BuildProviders(config.ProvidersConfig{
		STT: config.ProviderEntry{Name: "nope"},
	}, config.NewRegistry(), nil)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}
