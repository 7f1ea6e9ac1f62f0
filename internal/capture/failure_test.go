package capture

import (
	"errors"
	"strings"
	"testing"
)

func TestFailure_Is(t *testing.T) {
	t.Parallel()

	cause := errors.New("device unplugged")
	tests := []struct {
		reason Reason
		want   error
	}{
		{ReasonPermissionDenied, ErrPermissionDenied},
		{ReasonEngineStartFailed, ErrEngineStartFailed},
		{ReasonNoSpeechDetected, ErrNoSpeechDetected},
		{ReasonTranscriptionTimeout, ErrTranscriptionTimeout},
		{ReasonEngineError, ErrEngineError},
		{ReasonDeliveryFailed, ErrDeliveryFailed},
	}
	for _, tc := range tests {
		t.Run(string(tc.reason), func(t *testing.T) {
			t.Parallel()
			f := &Failure{Reason: tc.reason, Err: cause}
			if !errors.Is(f, tc.want) {
				t.Errorf("errors.Is(%v, sentinel) = false", f)
			}
			if !errors.Is(f, cause) {
				t.Errorf("errors.Is(%v, cause) = false", f)
			}
			if !strings.Contains(f.Error(), "device unplugged") {
				t.Errorf("Error() = %q, missing cause", f.Error())
			}
			if tc.reason.Message() == "" {
				t.Error("empty user message")
			}
		})
	}
}

func TestFailure_NoCause(t *testing.T) {
	t.Parallel()

	f := &Failure{Reason: ReasonNoSpeechDetected}
	if got, want := f.Error(), ErrNoSpeechDetected.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := len(f.Unwrap()); got != 1 {
		t.Errorf("Unwrap() returned %d errors, want 1", got)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateIdle:       "idle",
		StateRecording:  "recording",
		StateStopping:   "stopping",
		StateProcessing: "processing",
		State(42):       "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
