package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

// STTFallback implements [stt.Transcriber] with automatic failover across
// multiple transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

var (
	_ stt.Transcriber   = (*STTFallback)(nil)
	_ stt.HealthChecker = (*STTFallback)(nil)
	_ Reporter          = (*STTFallback)(nil)
)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend. Unless cfg.Final is set, [stt.ErrEmptyAudio] from a backend ends
// the walk: another backend would hear the same silence.
func NewSTTFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Final == nil {
		cfg.Final = func(err error) bool { return errors.Is(err, stt.ErrEmptyAudio) }
	}
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// States reports the breaker state of every backend.
func (f *STTFallback) States() map[string]State { return f.group.States() }

// AddFallback registers an additional transcriber as a fallback.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe sends clip to the first healthy transcriber. An empty clip is
// rejected up front so that it does not count against any breaker.
func (f *STTFallback) Transcribe(ctx context.Context, clip types.AudioClip) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, stt.ErrEmptyAudio
	}
	return ExecuteWithResult(ctx, f.group, func(t stt.Transcriber) (stt.Transcript, error) {
		return t.Transcribe(ctx, clip)
	})
}

// Health reports healthy when at least one backend is healthy. Backends that
// do not implement [stt.HealthChecker] count as healthy.
func (f *STTFallback) Health(ctx context.Context) error {
	var errs []error
	for _, t := range f.group.Values() {
		hc, ok := t.(stt.HealthChecker)
		if !ok {
			return nil
		}
		err := hc.Health(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
