package capture

import (
	"context"
	"time"
)

// DefaultDebounce is how long the trigger must stay held before an attempt
// begins.
const DefaultDebounce = 80 * time.Millisecond

// Debouncer converts raw held/released edges into begin and end intents.
//
// A press starts the debounce timer; Begin is sent only if the combo is
// still held when it fires. A release cancels a pending timer and sends End
// if Begin was sent. Repeated edges in the same direction are ignored. While
// held, an optional [HeldQuery] is polled so a lost release edge still
// produces End.
type Debouncer struct {
	sink     IntentSink
	delay    time.Duration
	interval time.Duration
	held     HeldQuery
}

// DebouncerOption configures a [Debouncer].
type DebouncerOption func(*Debouncer)

// WithDebounce sets the press debounce delay.
func WithDebounce(d time.Duration) DebouncerOption {
	return func(db *Debouncer) {
		if d > 0 {
			db.delay = d
		}
	}
}

// WithHeldPoll enables the failsafe poll against q every interval.
func WithHeldPoll(q HeldQuery, interval time.Duration) DebouncerOption {
	return func(db *Debouncer) {
		db.held = q
		if interval > 0 {
			db.interval = interval
		}
	}
}

// NewDebouncer returns a debouncer that emits into sink.
func NewDebouncer(sink IntentSink, opts ...DebouncerOption) *Debouncer {
	db := &Debouncer{
		sink:     sink,
		delay:    DefaultDebounce,
		interval: DefaultPollInterval,
	}
	for _, o := range opts {
		o(db)
	}
	return db
}

// Run consumes edges (true for held, false for released) until ctx is done or
// edges is closed. A closed channel counts as a release.
func (db *Debouncer) Run(ctx context.Context, edges <-chan bool) error {
	var (
		held, active bool
		timer        *time.Timer
		timerC       <-chan time.Time
		ticker       *time.Ticker
		tickC        <-chan time.Time
	)

	press := func() {
		if held {
			return
		}
		held = true
		timer = time.NewTimer(db.delay)
		timerC = timer.C
		if db.held != nil {
			ticker = time.NewTicker(db.interval)
			tickC = ticker.C
		}
	}
	release := func() {
		if !held {
			return
		}
		held = false
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
		if active {
			active = false
			db.sink.End()
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case down, ok := <-edges:
			if !ok {
				release()
				return nil
			}
			if down {
				press()
			} else {
				release()
			}
		case <-timerC:
			timer, timerC = nil, nil
			if held {
				active = true
				db.sink.Begin()
			}
		case <-tickC:
			if !db.held.IsComboHeldNow() {
				release()
			}
		}
	}
}
