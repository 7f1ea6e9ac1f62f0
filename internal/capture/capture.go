// Package capture runs push-to-talk dictation attempts.
//
// A [Debouncer] turns raw "combo held" edges into begin and end intents. A
// [Controller] owns the attempt state machine for one flow:
//
//	Idle → Recording → Stopping → Processing → Idle
//
// Every attempt is identified by a [Token]. Asynchronous results (permission
// checks, transcripts, engine failures, timers) carry the token they were
// issued under and are dropped when it is no longer live, so a late callback
// from an abandoned attempt can never touch a newer one. Controllers that
// share a [Lock] never run attempts at the same time.
package capture

import (
	"context"
	"time"

	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/internal/history"
	"github.com/MrWong99/flux/internal/transcript"
	"github.com/MrWong99/flux/pkg/types"
)

// State is the attempt state of a [Controller].
type State int32

const (
	// StateIdle means no attempt is live.
	StateIdle State = iota

	// StateRecording means an attempt is live and capturing audio, or waiting
	// for its permission check.
	StateRecording

	// StateStopping means the recorder was stopped and the transcript is
	// awaited under the watchdog.
	StateStopping

	// StateProcessing means the transcript is being corrected, enhanced, and
	// delivered.
	StateProcessing
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Token identifies one attempt.
type Token string

// HeldQuery reports whether the trigger combination is physically held right
// now. It backs the failsafe poll that catches missed release edges.
type HeldQuery interface {
	IsComboHeldNow() bool
}

// Permission checks that audio capture is allowed. It is called once per
// attempt and must be safe to call repeatedly.
type Permission interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Recorder captures audio and transcribes it. After a successful Start,
// exactly one of onTranscript or onFailure is called exactly once, from any
// goroutine, at some point after Stop.
//
// Cancel abandons the capture instead: the audio is dropped without being
// sent for transcription. A callback may still arrive if it was already in
// flight; the controller drops it by token.
type Recorder interface {
	Start(onTranscript func(text string, elapsed time.Duration), onFailure func(err error)) error
	Stop()
	Cancel()
	IsRecording() bool
}

// Corrector rewrites a raw transcript. [transcript.Pipeline] satisfies it.
type Corrector interface {
	Correct(raw string) transcript.Result
}

// Enhancer optionally rewrites corrected text. On error the corrected text
// is delivered instead.
type Enhancer interface {
	Enhance(ctx context.Context, text string, app types.AppContext) (string, error)
}

// Deliverer hands final text to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, text string) delivery.Outcome
}

// HistorySink receives one record per finished attempt.
type HistorySink interface {
	Append(ctx context.Context, r history.Record) error
}

// Notifier shows a one-line message to the user.
type Notifier interface {
	Notify(title, message string) error
}

// AppDetector reports the application that currently has focus.
type AppDetector interface {
	ActiveApp() types.AppContext
}

// IntentSink receives debounced intents. [Controller] satisfies it.
type IntentSink interface {
	Begin()
	End()
}
