// Package history records one append-only entry per finished capture
// attempt.
//
// Two sinks are provided: [FileStore] writes JSON lines to a local file and
// [PostgresStore] writes rows to PostgreSQL. [Multi] fans a record out to
// several sinks.
package history

import (
	"context"
	"errors"
	"time"
)

// Outcome values stored in [Record.Outcome].
const (
	OutcomeInserted  = "inserted"
	OutcomeClipboard = "clipboard"
	OutcomeFailed    = "failed"
)

// Record is a single attempt entry.
type Record struct {
	// ID uniquely identifies the attempt. It equals the attempt token.
	ID string `json:"id"`

	// Flow is the name of the capture flow that ran the attempt.
	Flow string `json:"flow"`

	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`

	// Raw is the transcript as returned by the speech engine.
	Raw string `json:"raw,omitempty"`

	// Corrected is the output of the correction pipeline.
	Corrected string `json:"corrected,omitempty"`

	// Final is the text that was delivered, after optional enhancement.
	Final string `json:"final,omitempty"`

	// Duration is the length of the recording.
	Duration time.Duration `json:"duration"`

	// Outcome is one of [OutcomeInserted], [OutcomeClipboard] or
	// [OutcomeFailed].
	Outcome string `json:"outcome"`

	// FailureReason names the failure when Outcome is [OutcomeFailed].
	FailureReason string `json:"failure_reason,omitempty"`

	// App is the application that had focus when the attempt began.
	App string `json:"app,omitempty"`

	// Enhanced is true when Final came from the language model.
	Enhanced bool `json:"enhanced,omitempty"`
}

// Sink receives attempt records.
type Sink interface {
	Append(ctx context.Context, r Record) error
}

// Reader returns the newest records, newest first. A limit of zero or less
// selects the store's default.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// ErrNotReadable is returned by [Multi.Recent] when no sink is a [Reader].
var ErrNotReadable = errors.New("history: no readable sink")

// Multi appends to every sink and joins their errors. A failing sink does
// not prevent the others from receiving the record.
type Multi []Sink

var (
	_ Sink   = Multi(nil)
	_ Reader = Multi(nil)
	_ Reader = (*FileStore)(nil)
	_ Reader = (*PostgresStore)(nil)
)

// Append implements [Sink].
func (m Multi) Append(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recent reads from the first sink that is a [Reader].
func (m Multi) Recent(ctx context.Context, limit int) ([]Record, error) {
	for _, s := range m {
		if r, ok := s.(Reader); ok {
			return r.Recent(ctx, limit)
		}
	}
	return nil, ErrNotReadable
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
