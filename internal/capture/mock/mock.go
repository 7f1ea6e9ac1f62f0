// Package mock provides test doubles for the collaborators of
// capture.Controller.
//
// The recorder never calls its callbacks on its own. Tests drive them with
// [Recorder.Transcribe] and [Recorder.Fail], or through the callbacks of an
// earlier start returned by [Recorder.Session] to simulate late results.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/flux/internal/capture"
	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/internal/history"
	"github.com/MrWong99/flux/pkg/types"
)

// Session holds the callbacks passed to one successful Recorder.Start.
type Session struct {
	OnTranscript func(text string, elapsed time.Duration)
	OnFailure    func(err error)
}

// Recorder is a mock capture.Recorder.
type Recorder struct {
	mu        sync.Mutex
	recording bool
	sessions  []Session
	starts    int
	stops     int
	cancels   int

	// StartErr, if non-nil, is returned by Start.
	StartErr error
}

// Start records the callbacks and marks the recorder as recording.
func (r *Recorder) Start(onTranscript func(string, time.Duration), onFailure func(error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.StartErr != nil {
		return r.StartErr
	}
	r.recording = true
	r.sessions = append(r.sessions, Session{OnTranscript: onTranscript, OnFailure: onFailure})
	return nil
}

// Stop marks the recorder as idle.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.recording = false
}

// Cancel marks the recorder as idle. Unlike a real recorder it does not stop
// tests from driving the callbacks afterwards.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels++
	r.recording = false
}

// IsRecording reports whether Start succeeded without a later Stop or Cancel.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// SetRecording overrides the recording flag, e.g. to simulate an engine that
// kept running after its attempt was abandoned.
func (r *Recorder) SetRecording(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = v
}

// Starts returns the number of Start calls, including failed ones.
func (r *Recorder) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

// Stops returns the number of Stop calls.
func (r *Recorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

// Cancels returns the number of Cancel calls.
func (r *Recorder) Cancels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancels
}

// Session returns the callbacks of the i-th successful start. It panics if
// there was no such start.
func (r *Recorder) Session(i int) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[i]
}

// Sessions returns the number of successful starts.
func (r *Recorder) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Transcribe delivers text through the most recent session.
func (r *Recorder) Transcribe(text string) {
	r.last().OnTranscript(text, 0)
}

// Fail delivers err through the most recent session.
func (r *Recorder) Fail(err error) {
	r.last().OnFailure(err)
}

func (r *Recorder) last() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[len(r.sessions)-1]
}

// Permission is a mock capture.Permission.
type Permission struct {
	mu    sync.Mutex
	calls int

	// Denied makes the check fail.
	Denied bool

	// Err, if non-nil, is returned with a false result.
	Err error

	// Block, if non-nil, makes the check wait until it is closed or ctx is
	// done.
	Block chan struct{}
}

// RequestPermission returns !Denied, or the configured error.
func (p *Permission) RequestPermission(ctx context.Context) (bool, error) {
	p.mu.Lock()
	p.calls++
	block, denied, err := p.Block, p.Denied, p.Err
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err != nil {
		return false, err
	}
	return !denied, nil
}

// Calls returns the number of checks.
func (p *Permission) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Held is a mock capture.HeldQuery.
type Held struct {
	mu   sync.Mutex
	held bool
}

// Set changes the reported state.
func (h *Held) Set(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.held = v
}

// IsComboHeldNow returns the last value passed to Set.
func (h *Held) IsComboHeldNow() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.held
}

// Deliverer is a mock capture.Deliverer.
type Deliverer struct {
	mu    sync.Mutex
	texts []string

	// Outcome is returned by Deliver. The zero value means inserted.
	Outcome delivery.Outcome

	// Block, if non-nil, holds Deliver until it is closed. The context is
	// ignored, like a stuck paste would.
	Block chan struct{}
}

// Deliver records text and returns Outcome.
func (d *Deliverer) Deliver(_ context.Context, text string) delivery.Outcome {
	if d.Block != nil {
		<-d.Block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	if d.Outcome.Kind == "" {
		return delivery.Outcome{Kind: delivery.OutcomeInserted}
	}
	return d.Outcome
}

// Texts returns a copy of every delivered text.
func (d *Deliverer) Texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

// Enhancer is a mock capture.Enhancer.
type Enhancer struct {
	mu   sync.Mutex
	apps []types.AppContext

	// Result is returned when Err is nil. Empty means echo the input.
	Result string

	// Err, if non-nil, is returned together with the input text.
	Err error
}

// Enhance returns Result or the configured error.
func (e *Enhancer) Enhance(_ context.Context, text string, app types.AppContext) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.apps = append(e.apps, app)
	if e.Err != nil {
		return text, e.Err
	}
	if e.Result == "" {
		return text, nil
	}
	return e.Result, nil
}

// Apps returns the app context of every call.
func (e *Enhancer) Apps() []types.AppContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.AppContext(nil), e.apps...)
}

// History is a mock capture.HistorySink.
type History struct {
	mu      sync.Mutex
	records []history.Record

	// Err, if non-nil, is returned by Append after recording.
	Err error
}

// Append records r.
func (h *History) Append(_ context.Context, r history.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return h.Err
}

// Recent returns up to limit records, newest first. A limit of zero or less
// returns all of them.
func (h *History) Recent(_ context.Context, limit int) ([]history.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.records) {
		limit = len(h.records)
	}
	out := make([]history.Record, 0, limit)
	for i := len(h.records) - 1; len(out) < limit; i-- {
		out = append(out, h.records[i])
	}
	return out, h.Err
}

// Records returns a copy of every appended record.
func (h *History) Records() []history.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Record(nil), h.records...)
}

// Notification is one Notify call.
type Notification struct {
	Title   string
	Message string
}

// Notifier is a mock capture.Notifier.
type Notifier struct {
	mu    sync.Mutex
	calls []Notification
}

// Notify records the call.
func (n *Notifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, Notification{Title: title, Message: message})
	return nil
}

// Calls returns a copy of every notification.
func (n *Notifier) Calls() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.calls...)
}

// Apps is a mock capture.AppDetector that always reports App.
type Apps struct {
	App types.AppContext
}

// ActiveApp returns App.
func (a Apps) ActiveApp() types.AppContext { return a.App }

// Intents is a mock capture.IntentSink that records calls in order.
type Intents struct {
	mu     sync.Mutex
	events []string
}

// Begin records "begin".
func (s *Intents) Begin() { s.add("begin") }

// End records "end".
func (s *Intents) End() { s.add("end") }

func (s *Intents) add(e string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns the recorded intents.
func (s *Intents) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

var (
	_ capture.Recorder    = (*Recorder)(nil)
	_ capture.Permission  = (*Permission)(nil)
	_ capture.HeldQuery   = (*Held)(nil)
	_ capture.Deliverer   = (*Deliverer)(nil)
	_ capture.Enhancer    = (*Enhancer)(nil)
	_ capture.HistorySink = (*History)(nil)
	_ history.Reader      = (*History)(nil)
	_ capture.Notifier    = (*Notifier)(nil)
	_ capture.AppDetector = Apps{}
	_ capture.IntentSink  = (*Intents)(nil)
)
