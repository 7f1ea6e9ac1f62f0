package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/flux/pkg/provider/stt"
	sttmock "github.com/MrWong99/flux/pkg/provider/stt/mock"
	"github.com/MrWong99/flux/pkg/types"
)

var testClip = types.AudioClip{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Transcriber{Result: stt.Transcript{Text: "from primary"}}
	secondary := &sttmock.Transcriber{Result: stt.Transcript{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Transcribe(context.Background(), testClip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "from primary" {
		t.Fatalf("text = %q, want %q", got.Text, "from primary")
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	primary := &sttmock.Transcriber{Err: errors.New("primary down")}
	secondary := &sttmock.Transcriber{Result: stt.Transcript{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Transcribe(context.Background(), testClip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "from secondary" {
		t.Fatalf("text = %q, want %q", got.Text, "from secondary")
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Fatalf("calls = (%d, %d), want (1, 1)", primary.CallCount(), secondary.CallCount())
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	primary := &sttmock.Transcriber{Err: errors.New("primary down")}
	secondary := &sttmock.Transcriber{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), testClip)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_Transcribe_EmptyClip(t *testing.T) {
	primary := &sttmock.Transcriber{}
	fb := NewSTTFallback(primary, "primary", FallbackConfig{})

	_, err := fb.Transcribe(context.Background(), types.AudioClip{SampleRate: 16000, Channels: 1})
	if !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want stt.ErrEmptyAudio", err)
	}
	if primary.CallCount() != 0 {
		t.Fatalf("primary called %d times for empty clip, want 0", primary.CallCount())
	}
}

func TestSTTFallback_Health(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name      string
		primary   error
		secondary error
		wantErr   bool
	}{
		{name: "both healthy"},
		{name: "primary down", primary: down},
		{name: "both down", primary: down, secondary: down, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := NewSTTFallback(&sttmock.Transcriber{HealthErr: tt.primary}, "primary", FallbackConfig{})
			fb.AddFallback("secondary", &sttmock.Transcriber{HealthErr: tt.secondary})

			err := fb.Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Health() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, down) {
				t.Errorf("Health() = %v, want wrapped %v", err, down)
			}
		})
	}
}

func TestSTTFallback_SilenceDoesNotFailOver(t *testing.T) {
	primary := &sttmock.Transcriber{Err: stt.ErrEmptyAudio}
	secondary := &sttmock.Transcriber{Result: stt.Transcript{Text: "hallucinated"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), testClip)
	if !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want stt.ErrEmptyAudio", err)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
	if got := fb.States()["primary"]; got != StateClosed {
		t.Errorf("primary breaker = %v, want closed", got)
	}
}
