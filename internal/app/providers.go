package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/flux/internal/config"
	"github.com/MrWong99/flux/internal/observe"
	"github.com/MrWong99/flux/internal/resilience"
	"github.com/MrWong99/flux/pkg/provider/llm"
	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

// Providers holds the backends shared by every flow. LLM is nil when no
// language model is configured.
type Providers struct {
	STT stt.Transcriber
	LLM llm.Provider
}

// BuildProviders creates the configured backends from reg. Every backend is
// metered. When fallbacks are configured the backends are wrapped in
// circuit-broken fallback groups whose transitions are counted in met.
func BuildProviders(cfg config.ProvidersConfig, reg *config.Registry, met *observe.Metrics) (*Providers, error) {
	if met == nil {
		met = observe.DefaultMetrics()
	}
	fb := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			IsFailure: countsAgainstBreaker,
			OnStateChange: func(name string, _, to resilience.State) {
				met.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
		Final: func(err error) bool { return errors.Is(err, stt.ErrEmptyAudio) },
	}

	p := &Providers{}

	primary, err := reg.CreateSTT(cfg.STT)
	if err != nil {
		return nil, fmt.Errorf("app: create stt %q: %w", cfg.STT.Name, err)
	}
	p.STT = &meteredSTT{Transcriber: primary, name: cfg.STT.Name, met: met}
	if len(cfg.STTFallback) > 0 {
		group := resilience.NewSTTFallback(p.STT, cfg.STT.Name, fb)
		for _, e := range cfg.STTFallback {
			t, err := reg.CreateSTT(e)
			if err != nil {
				return nil, fmt.Errorf("app: create stt fallback %q: %w", e.Name, err)
			}
			group.AddFallback(e.Name, &meteredSTT{Transcriber: t, name: e.Name, met: met})
		}
		p.STT = group
	}

	if cfg.LLM.Name == "" {
		return p, nil
	}
	model, err := reg.CreateLLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("app: create llm %q: %w", cfg.LLM.Name, err)
	}
	p.LLM = &meteredLLM{Provider: model, name: cfg.LLM.Name, met: met}
	if len(cfg.LLMFallback) > 0 {
		group := resilience.NewLLMFallback(p.LLM, cfg.LLM.Name, fb)
		for _, e := range cfg.LLMFallback {
			m, err := reg.CreateLLM(e)
			if err != nil {
				return nil, fmt.Errorf("app: create llm fallback %q: %w", e.Name, err)
			}
			group.AddFallback(e.Name, &meteredLLM{Provider: m, name: e.Name, met: met})
		}
		p.LLM = group
	}
	return p, nil
}

// countsAgainstBreaker excludes cancellations and silent clips. Neither says
// anything about the backend's health.
func countsAgainstBreaker(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, stt.ErrEmptyAudio)
}

type meteredSTT struct {
	stt.Transcriber
	name string
	met  *observe.Metrics
}

var (
	_ stt.Transcriber   = (*meteredSTT)(nil)
	_ stt.HealthChecker = (*meteredSTT)(nil)
)

func (m *meteredSTT) Transcribe(ctx context.Context, clip types.AudioClip) (stt.Transcript, error) {
	res, err := m.Transcriber.Transcribe(ctx, clip)
	m.met.RecordProviderRequest(ctx, m.name, "stt", requestStatus(err))
	if err != nil && countsAgainstBreaker(err) {
		m.met.RecordProviderError(ctx, m.name, "stt")
	}
	return res, err
}

// Health forwards to the wrapped transcriber. Backends without a health
// endpoint count as healthy.
func (m *meteredSTT) Health(ctx context.Context) error {
	if hc, ok := m.Transcriber.(stt.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

type meteredLLM struct {
	llm.Provider
	name string
	met  *observe.Metrics
}

var _ llm.Provider = (*meteredLLM)(nil)

func (m *meteredLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := m.Provider.Complete(ctx, req)
	m.met.RecordProviderRequest(ctx, m.name, "llm", requestStatus(err))
	if err != nil && countsAgainstBreaker(err) {
		m.met.RecordProviderError(ctx, m.name, "llm")
	}
	return resp, err
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, stt.ErrEmptyAudio):
		return "empty"
	default:
		return "error"
	}
}
