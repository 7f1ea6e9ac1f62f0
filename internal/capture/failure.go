package capture

import (
	"errors"
	"fmt"
)

// Reason classifies why an attempt failed.
type Reason string

const (
	ReasonPermissionDenied     Reason = "PermissionDenied"
	ReasonEngineStartFailed    Reason = "EngineStartFailed"
	ReasonNoSpeechDetected     Reason = "NoSpeechDetected"
	ReasonTranscriptionTimeout Reason = "TranscriptionTimeout"
	ReasonEngineError          Reason = "EngineError"

	// ReasonDeliveryFailed is recorded on the history entry only. It is not
	// an attempt failure.
	ReasonDeliveryFailed Reason = "DeliveryFailed"
)

// Sentinel errors matched with [errors.Is] against a [*Failure].
var (
	ErrPermissionDenied     = errors.New("capture: microphone permission denied")
	ErrEngineStartFailed    = errors.New("capture: recording engine failed to start")
	ErrNoSpeechDetected     = errors.New("capture: no speech detected")
	ErrTranscriptionTimeout = errors.New("capture: transcription timed out")
	ErrEngineError          = errors.New("capture: recording engine error")
	ErrDeliveryFailed       = errors.New("capture: delivery failed")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonPermissionDenied:
		return ErrPermissionDenied
	case ReasonEngineStartFailed:
		return ErrEngineStartFailed
	case ReasonNoSpeechDetected:
		return ErrNoSpeechDetected
	case ReasonTranscriptionTimeout:
		return ErrTranscriptionTimeout
	case ReasonDeliveryFailed:
		return ErrDeliveryFailed
	default:
		return ErrEngineError
	}
}

// Message returns the short sentence shown to the user.
func (r Reason) Message() string {
	switch r {
	case ReasonPermissionDenied:
		return "Microphone access was denied."
	case ReasonEngineStartFailed:
		return "Could not start recording."
	case ReasonNoSpeechDetected:
		return "No speech detected."
	case ReasonTranscriptionTimeout:
		return "Transcription timed out."
	case ReasonDeliveryFailed:
		return "Could not deliver the text."
	default:
		return "Transcription failed."
	}
}

// Failure is an attempt-scoped error. It never escapes the [Controller]; it
// is reported through notifications, history, and logs.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.sentinel().Error()
	}
	return fmt.Sprintf("%v: %v", f.Reason.sentinel(), f.Err)
}

// Unwrap returns the reason's sentinel and the underlying cause.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Reason.sentinel()}
	}
	return []error{f.Reason.sentinel(), f.Err}
}
