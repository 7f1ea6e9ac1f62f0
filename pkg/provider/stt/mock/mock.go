// Package mock provides a test double for the stt.Transcriber interface.
//
// Example:
//
//	tr := &mock.Transcriber{Result: stt.Transcript{Text: "hello"}}
//	got, err := tr.Transcribe(ctx, clip)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx  context.Context
	Clip types.AudioClip
}

// Transcriber is a mock implementation of stt.Transcriber and
// stt.HealthChecker. Set fields before use; mutating them during a concurrent
// call is the caller's responsibility.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Block, if non-nil, makes Transcribe wait until it is closed or ctx is
	// cancelled.
	Block chan struct{}

	// HealthErr is returned by Health.
	HealthErr error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (t *Transcriber) Transcribe(ctx context.Context, clip types.AudioClip) (stt.Transcript, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, TranscribeCall{Ctx: ctx, Clip: clip})
	block := t.Block
	res, err := t.Result, t.Err
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return stt.Transcript{}, ctx.Err()
		}
	}
	return res, err
}

// Health returns HealthErr.
func (t *Transcriber) Health(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.HealthErr
}

// CallCount returns the number of recorded Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

var (
	_ stt.Transcriber   = (*Transcriber)(nil)
	_ stt.HealthChecker = (*Transcriber)(nil)
)
