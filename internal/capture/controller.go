package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/internal/history"
	"github.com/MrWong99/flux/internal/observe"
	"github.com/MrWong99/flux/internal/transcript"
	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

// Defaults applied by [New] to zero [Config] fields.
const (
	DefaultMinDuration       = 500 * time.Millisecond
	DefaultMaxDuration       = 120 * time.Second
	DefaultWatchdog          = 15 * time.Second
	DefaultPollInterval      = 40 * time.Millisecond
	DefaultPermissionTimeout = 10 * time.Second
)

const (
	notifyTitle    = "Flux"
	historyTimeout = 5 * time.Second
	eventBuffer    = 32

	// processingFactor times the watchdog bounds correction, enhancement,
	// and delivery once the transcript has arrived.
	processingFactor = 2

	outcomeDiscarded = "discarded"
	outcomeAborted   = "aborted"
)

// Config tunes one [Controller].
type Config struct {
	// Flow names the controller in logs, metrics, and history.
	Flow string

	// MinDuration is the shortest recording that is transcribed. Shorter
	// holds are discarded silently as accidental taps.
	MinDuration time.Duration

	// MaxDuration stops a recording that has run this long.
	MaxDuration time.Duration

	// Watchdog bounds the wait for a transcript after the recorder stopped.
	// Twice its value bounds the processing that follows.
	Watchdog time.Duration

	// PollInterval is the failsafe cadence for [HeldQuery].
	PollInterval time.Duration

	// PermissionTimeout bounds a single permission check. A check that
	// times out counts as denied.
	PermissionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Flow == "" {
		c.Flow = "default"
	}
	if c.MinDuration <= 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.Watchdog <= 0 {
		c.Watchdog = DefaultWatchdog
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PermissionTimeout <= 0 {
		c.PermissionTimeout = DefaultPermissionTimeout
	}
	return c
}

// Deps are the collaborators of a [Controller]. Recorder, Pipeline, and
// Deliverer are required; the rest are optional.
type Deps struct {
	Recorder  Recorder
	Pipeline  Corrector
	Deliverer Deliverer

	// Lock is shared between controllers that must not record at the same
	// time. When nil the controller uses a private lock.
	Lock *Lock

	// Permission is checked at the start of every attempt. When nil,
	// permission is always granted.
	Permission Permission

	// Held enables the failsafe poll while recording.
	Held HeldQuery

	Enhancer Enhancer
	History  HistorySink
	Notifier Notifier
	Apps     AppDetector
	Metrics  *observe.Metrics
}

// Controller runs capture attempts for one flow. All state transitions
// happen on the goroutine executing [Controller.Run]; every other method is
// safe for concurrent use.
type Controller struct {
	cfg  Config
	deps Deps
	lock *Lock
	met  *observe.Metrics

	events chan event
	done   chan struct{}
	state  atomic.Int32

	tokMu sync.Mutex
	tok   Token

	// Owned by the Run goroutine.
	live *attempt
	poll *time.Ticker

	bg sync.WaitGroup
}

var _ IntentSink = (*Controller)(nil)

type attempt struct {
	token     Token
	startedAt time.Time
	app       types.AppContext

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	log    *slog.Logger

	permissionPending bool
	endRequested      bool
	recorderStarted   bool

	recordStart time.Time
	stoppedAt   time.Time
	duration    time.Duration
	raw         string

	maxTimer *time.Timer
	watchdog *time.Timer
}

type eventKind int

const (
	evBegin eventKind = iota
	evEnd
	evPermission
	evTranscript
	evFailure
	evWatchdog
	evMaxDuration
	evProcessed
	evProcessingTimeout
)

type event struct {
	kind    eventKind
	token   Token
	granted bool
	err     error
	text    string
	elapsed time.Duration
	result  processResult
}

type processResult struct {
	corrected transcript.Result
	final     string
	enhanced  bool
	outcome   delivery.Outcome
}

// New returns a controller. It does nothing until [Controller.Run] is called.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Recorder == nil {
		return nil, errors.New("capture: recorder is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("capture: pipeline is required")
	}
	if deps.Deliverer == nil {
		return nil, errors.New("capture: deliverer is required")
	}
	c := &Controller{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		lock:   deps.Lock,
		met:    deps.Metrics,
		events: make(chan event, eventBuffer),
		done:   make(chan struct{}),
	}
	if c.lock == nil {
		c.lock = &Lock{}
	}
	if c.met == nil {
		c.met = observe.DefaultMetrics()
	}
	return c, nil
}

// Flow returns the configured flow name.
func (c *Controller) Flow() string { return c.cfg.Flow }

// State returns the current attempt state.
func (c *Controller) State() State { return State(c.state.Load()) }

// LiveToken returns the token of the live attempt, or the empty string.
func (c *Controller) LiveToken() Token {
	c.tokMu.Lock()
	defer c.tokMu.Unlock()
	return c.tok
}

// Begin requests a new attempt. It is ignored while an attempt is live or
// another controller holds the shared lock.
func (c *Controller) Begin() { c.post(event{kind: evBegin}) }

// End requests that the live attempt stop recording. It always drives the
// attempt towards Idle.
func (c *Controller) End() { c.post(event{kind: evEnd}) }

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Run processes events until ctx is cancelled. A live attempt is aborted on
// the way out: the recording is cancelled and the lock released. Run must be
// called at most once.
func (c *Controller) Run(ctx context.Context) error {
	for {
		var pollC <-chan time.Time
		if c.poll != nil {
			pollC = c.poll.C
		}
		select {
		case <-ctx.Done():
			c.shutdown()
			close(c.done)
			c.bg.Wait()
			return nil
		case ev := <-c.events:
			c.handle(ctx, ev)
		case <-pollC:
			c.checkHeld()
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evBegin:
		c.begin(ctx)
	case evEnd:
		c.end()
	case evPermission:
		c.permissionResolved(ev)
	case evTranscript:
		c.transcriptArrived(ev)
	case evFailure:
		c.engineFailed(ev)
	case evWatchdog:
		c.watchdogFired(ev)
	case evMaxDuration:
		c.maxDurationReached(ev)
	case evProcessed:
		c.processed(ev)
	case evProcessingTimeout:
		c.processingTimedOut(ev)
	}
}

// current returns the live attempt if tok is its token.
func (c *Controller) current(tok Token) *attempt {
	if c.live == nil || c.live.token != tok {
		return nil
	}
	return c.live
}

func (c *Controller) setState(s State) { c.state.Store(int32(s)) }

func (c *Controller) begin(ctx context.Context) {
	if c.live != nil {
		slog.Debug("capture: begin ignored, attempt in progress", "flow", c.cfg.Flow, "token", c.live.token)
		return
	}
	tok := Token(uuid.NewString())
	if !c.lock.TryAcquire(string(tok)) {
		slog.Info("capture: begin ignored, another flow is capturing", "flow", c.cfg.Flow, "holder", c.lock.Holder())
		return
	}

	a := &attempt{token: tok, startedAt: time.Now()}
	if c.deps.Apps != nil {
		a.app = c.deps.Apps.ActiveApp()
	}
	actx, cancel := context.WithCancel(ctx)
	a.ctx, a.span = observe.StartAttempt(actx, observe.AttemptInfo{Flow: c.cfg.Flow, Token: string(tok), App: a.app.Name})
	a.cancel = cancel
	a.log = observe.Logger(a.ctx)

	c.live = a
	c.tokMu.Lock()
	c.tok = tok
	c.tokMu.Unlock()
	c.setState(StateRecording)
	c.met.RecordAttemptStarted(ctx, c.cfg.Flow)
	a.log.Info("capture: attempt started", "app", a.app.Name)

	if c.deps.Permission == nil {
		c.permissionResolved(event{kind: evPermission, token: tok, granted: true})
		return
	}

	a.permissionPending = true
	perm := c.deps.Permission
	timeout := c.cfg.PermissionTimeout
	pctx := a.ctx
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(pctx, timeout)
		defer cancel()
		ok, err := perm.RequestPermission(ctx)
		c.post(event{kind: evPermission, token: tok, granted: ok && err == nil, err: err})
	}()
}

func (c *Controller) permissionResolved(ev event) {
	a := c.current(ev.token)
	if a == nil {
		slog.Debug("capture: stale permission result dropped", "flow", c.cfg.Flow, "token", ev.token)
		return
	}
	a.permissionPending = false

	if !ev.granted {
		c.fail(a, ReasonPermissionDenied, ev.err)
		return
	}
	if a.endRequested {
		a.log.Info("capture: released before permission resolved, discarding")
		c.finish(a, outcomeDiscarded)
		return
	}

	tok := a.token
	err := c.deps.Recorder.Start(
		func(text string, elapsed time.Duration) {
			c.post(event{kind: evTranscript, token: tok, text: text, elapsed: elapsed})
		},
		func(err error) {
			c.post(event{kind: evFailure, token: tok, err: err})
		},
	)
	if err != nil {
		c.fail(a, ReasonEngineStartFailed, err)
		return
	}

	a.recorderStarted = true
	a.recordStart = time.Now()
	a.maxTimer = time.AfterFunc(c.cfg.MaxDuration, func() {
		c.post(event{kind: evMaxDuration, token: tok})
	})
	if c.deps.Held != nil {
		c.poll = time.NewTicker(c.cfg.PollInterval)
	}
}

func (c *Controller) end() {
	a := c.live
	if a == nil {
		c.stopOrphan()
		return
	}
	switch {
	case a.permissionPending:
		a.endRequested = true
	case c.State() == StateRecording && a.recorderStarted:
		c.stopRecording(a, "released")
	}
}

func (c *Controller) checkHeld() {
	a := c.live
	if a == nil || !a.recorderStarted || c.State() != StateRecording {
		c.stopPoll()
		return
	}
	if c.deps.Held.IsComboHeldNow() {
		return
	}
	a.log.Info("capture: trigger no longer held, stopping")
	c.stopRecording(a, "failsafe")
}

func (c *Controller) maxDurationReached(ev event) {
	a := c.current(ev.token)
	if a == nil || !a.recorderStarted || c.State() != StateRecording {
		return
	}
	a.log.Info("capture: maximum duration reached, stopping", "max", c.cfg.MaxDuration)
	c.stopRecording(a, "max_duration")
}

// stopRecording moves a from Recording to Stopping, or discards it without
// transcribing when the hold was too short.
func (c *Controller) stopRecording(a *attempt, cause string) {
	c.stopPoll()
	stopTimer(a.maxTimer)
	a.duration = time.Since(a.recordStart)

	if a.duration < c.cfg.MinDuration {
		c.deps.Recorder.Cancel()
		a.log.Info("capture: hold too short, discarding", "duration", a.duration, "min", c.cfg.MinDuration)
		c.finish(a, outcomeDiscarded)
		return
	}
	c.deps.Recorder.Stop()

	observe.RecordDuration(a.ctx, c.met.RecordingDuration, a.duration, observe.Attr("flow", c.cfg.Flow))
	a.log.Debug("capture: recording stopped", "cause", cause, "duration", a.duration)
	a.stoppedAt = time.Now()
	c.setState(StateStopping)

	tok := a.token
	a.watchdog = time.AfterFunc(c.cfg.Watchdog, func() {
		c.post(event{kind: evWatchdog, token: tok})
	})
}

func (c *Controller) transcriptArrived(ev event) {
	a := c.current(ev.token)
	if a == nil {
		slog.Debug("capture: stale transcript dropped", "flow", c.cfg.Flow, "token", ev.token)
		c.stopOrphan()
		return
	}

	if c.State() == StateRecording {
		// The engine finished on its own before we asked it to stop.
		c.stopPoll()
		stopTimer(a.maxTimer)
		a.duration = time.Since(a.recordStart)
		if c.deps.Recorder.IsRecording() {
			c.deps.Recorder.Stop()
		}
	}
	stopTimer(a.watchdog)
	if !a.stoppedAt.IsZero() {
		observe.RecordDuration(a.ctx, c.met.TranscriptionDuration, time.Since(a.stoppedAt), observe.Attr("flow", c.cfg.Flow))
	}

	a.raw = ev.text
	if strings.TrimSpace(ev.text) == "" {
		c.fail(a, ReasonNoSpeechDetected, nil)
		return
	}

	c.setState(StateProcessing)
	a.log.Debug("capture: transcript received", "chars", len(ev.text), "elapsed", ev.elapsed)

	tok := a.token
	limit := processingFactor * c.cfg.Watchdog
	a.watchdog = time.AfterFunc(limit, func() {
		c.post(event{kind: evProcessingTimeout, token: tok})
	})
	pctx, cancel := context.WithTimeout(a.ctx, limit)

	raw := ev.text
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		defer cancel()
		res := c.process(pctx, a.log, a.app, raw)
		c.post(event{kind: evProcessed, token: tok, result: res})
	}()
}

// process runs off the event loop: correction, optional enhancement, and
// delivery.
func (c *Controller) process(ctx context.Context, log *slog.Logger, app types.AppContext, raw string) processResult {
	res := processResult{corrected: c.deps.Pipeline.Correct(raw)}
	res.final = res.corrected.Corrected
	if res.final == "" {
		return res
	}

	if e := c.deps.Enhancer; e != nil && enhancerEnabled(e) {
		start := time.Now()
		out, err := e.Enhance(ctx, res.final, app)
		status := "ok"
		if err != nil {
			status = "error"
			log.Warn("capture: enhancement failed, delivering corrected text", "err", err)
		} else if strings.TrimSpace(out) != "" {
			res.enhanced = out != res.final
			res.final = out
		}
		observe.RecordDuration(ctx, c.met.EnhancementDuration, time.Since(start), observe.Attr("status", status))
	}

	res.outcome = c.deps.Deliverer.Deliver(ctx, res.final)
	return res
}

func enhancerEnabled(e Enhancer) bool {
	if en, ok := e.(interface{ Enabled() bool }); ok {
		return en.Enabled()
	}
	return true
}

func (c *Controller) processed(ev event) {
	a := c.current(ev.token)
	if a == nil {
		return
	}
	res := ev.result
	if res.final == "" {
		// Everything said was filler or retracted.
		c.fail(a, ReasonNoSpeechDetected, nil)
		return
	}

	rec := c.baseRecord(a)
	rec.Corrected = res.corrected.Corrected
	rec.Final = res.final
	rec.Enhanced = res.enhanced
	c.met.RecordDelivery(a.ctx, c.cfg.Flow, string(res.outcome.Kind))

	if res.outcome.Delivered() {
		rec.Outcome = string(res.outcome.Kind)
		a.log.Info("capture: text delivered", "outcome", res.outcome.Kind, "corrections", len(res.corrected.Corrections), "enhanced", res.enhanced)
	} else {
		rec.Outcome = history.OutcomeFailed
		rec.FailureReason = string(ReasonDeliveryFailed)
		a.log.Warn("capture: delivery failed", "reason", res.outcome.Reason)
		c.notify(ReasonDeliveryFailed)
	}
	c.appendHistory(rec)
	c.finish(a, rec.Outcome)
}

// processingTimedOut gives up on an enhancer or deliverer that did not return
// in time. Its late result is dropped as stale.
func (c *Controller) processingTimedOut(ev event) {
	a := c.current(ev.token)
	if a == nil || c.State() != StateProcessing {
		return
	}
	a.log.Warn("capture: processing timed out, releasing", "limit", processingFactor*c.cfg.Watchdog)
	a.span.SetStatus(codes.Error, string(ReasonDeliveryFailed))

	rec := c.baseRecord(a)
	rec.Outcome = history.OutcomeFailed
	rec.FailureReason = string(ReasonDeliveryFailed)
	c.met.RecordDelivery(a.ctx, c.cfg.Flow, string(delivery.OutcomeFailed))
	c.notify(ReasonDeliveryFailed)
	c.appendHistory(rec)
	c.finish(a, rec.Outcome)
}

func (c *Controller) engineFailed(ev event) {
	a := c.current(ev.token)
	if a == nil {
		slog.Debug("capture: stale engine failure dropped", "flow", c.cfg.Flow, "token", ev.token, "err", ev.err)
		c.stopOrphan()
		return
	}
	reason := ReasonEngineError
	if errors.Is(ev.err, ErrNoSpeechDetected) || errors.Is(ev.err, stt.ErrEmptyAudio) {
		reason = ReasonNoSpeechDetected
	}
	c.fail(a, reason, ev.err)
}

func (c *Controller) watchdogFired(ev event) {
	a := c.current(ev.token)
	if a == nil || c.State() != StateStopping {
		return
	}
	c.fail(a, ReasonTranscriptionTimeout, fmt.Errorf("no transcript within %s", c.cfg.Watchdog))
}

// fail reports f once through logs, metrics, notification, and history, and
// returns the controller to Idle.
func (c *Controller) fail(a *attempt, reason Reason, cause error) {
	f := &Failure{Reason: reason, Err: cause}
	a.log.Warn("capture: attempt failed", "reason", reason, "err", f)
	a.span.RecordError(f)
	a.span.SetStatus(codes.Error, string(reason))

	if a.recorderStarted {
		c.deps.Recorder.Cancel()
	}
	c.met.RecordFailure(a.ctx, c.cfg.Flow, string(reason))
	c.notify(reason)

	rec := c.baseRecord(a)
	rec.Outcome = history.OutcomeFailed
	rec.FailureReason = string(reason)
	c.appendHistory(rec)

	c.finish(a, history.OutcomeFailed)
}

// finish releases everything the attempt holds and returns to Idle.
func (c *Controller) finish(a *attempt, outcome string) {
	c.stopPoll()
	stopTimer(a.maxTimer)
	stopTimer(a.watchdog)

	c.met.RecordAttemptFinished(a.ctx, c.cfg.Flow, outcome)
	a.span.SetAttributes(attribute.String("outcome", outcome))
	a.span.End()
	a.cancel()

	c.lock.Release(string(a.token))
	c.live = nil
	c.tokMu.Lock()
	c.tok = ""
	c.tokMu.Unlock()
	c.setState(StateIdle)
	a.log.Debug("capture: attempt finished", "outcome", outcome)
}

func (c *Controller) shutdown() {
	if a := c.live; a != nil {
		if a.recorderStarted {
			c.deps.Recorder.Cancel()
		}
		c.finish(a, outcomeAborted)
		return
	}
	c.stopOrphan()
}

// stopOrphan cancels a recorder that is still running while no attempt is
// live. Its audio belongs to no one.
func (c *Controller) stopOrphan() {
	if c.live == nil && c.deps.Recorder.IsRecording() {
		slog.Warn("capture: cancelling orphaned recorder", "flow", c.cfg.Flow)
		c.deps.Recorder.Cancel()
	}
}

func (c *Controller) stopPoll() {
	if c.poll != nil {
		c.poll.Stop()
		c.poll = nil
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (c *Controller) baseRecord(a *attempt) history.Record {
	return history.Record{
		ID:        string(a.token),
		Flow:      c.cfg.Flow,
		StartedAt: a.startedAt,
		Raw:       a.raw,
		Duration:  a.duration,
		App:       a.app.Name,
	}
}

func (c *Controller) notify(reason Reason) {
	n := c.deps.Notifier
	if n == nil {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if err := n.Notify(notifyTitle, reason.Message()); err != nil {
			slog.Debug("capture: notification failed", "err", err)
		}
	}()
}

func (c *Controller) appendHistory(rec history.Record) {
	sink := c.deps.History
	if sink == nil {
		return
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if err := sink.Append(ctx, rec); err != nil {
			slog.Warn("capture: history append failed", "flow", rec.Flow, "token", rec.ID, "err", err)
		}
	}()
}
