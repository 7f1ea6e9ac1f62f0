// Package stt defines the Transcriber interface for batch speech-to-text
// backends.
//
// A dictation attempt records one complete utterance and hands it to a
// Transcriber once the trigger is released. Implementations wrap a local
// transcription server, a whisper.cpp server or in-process model, or a
// cloud API, and return the recognised text for the whole clip.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/flux/pkg/types"
)

// ErrEmptyAudio is returned when a clip carries no samples.
var ErrEmptyAudio = errors.New("stt: empty audio clip")

// Transcript is the result of a batch transcription.
type Transcript struct {
	// Text is the recognised speech. Empty when nothing intelligible was heard.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report one.
	Confidence float64
}

// Transcriber converts one recorded clip into text.
type Transcriber interface {
	// Transcribe blocks until the backend returns a result, ctx is cancelled,
	// or the request fails.
	Transcribe(ctx context.Context, clip types.AudioClip) (Transcript, error)
}

// HealthChecker is implemented by transcribers that can report whether their
// backend is ready to accept requests.
type HealthChecker interface {
	Health(ctx context.Context) error
}
