// Package resilience keeps dictation working when a transcription or
// language model backend misbehaves.
//
// [CircuitBreaker] stops calling a backend after repeated failures and tries
// it again once a cool-down has passed. [FallbackGroup] chains a primary
// backend with ordered fallbacks, each behind its own breaker.
// [STTFallback] and [LLMFallback] expose such groups as ordinary providers.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned instead of calling the backend while its breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls until the reset timeout has passed.
	StateOpen
	// StateHalfOpen lets a limited number of trial calls through.
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults noted on each field.
type CircuitBreakerConfig struct {
	// Name labels log lines and state change callbacks.
	Name string

	// MaxFailures consecutive failures open the breaker. Default 5.
	MaxFailures int

	// ResetTimeout is the time spent open before trial calls resume. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax trial calls must succeed before the breaker closes. Default 3.
	HalfOpenMax int

	// IsFailure reports whether err counts against the backend. Rejected
	// errors count neither way. Default: everything but context.Canceled.
	IsFailure func(error) bool

	// OnStateChange is called on each transition with the breaker locked.
	// It must not call back into the breaker.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker is a closed, open and half-open breaker around one backend.
// It is safe for concurrent use.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	isFailure    func(error) bool
	onChange     func(name string, from, to State)

	mu       sync.Mutex
	state    State
	failures int // consecutive, while closed
	openedAt time.Time
	trials   int // admitted while half-open
	passed   int // succeeded while half-open
}

// NewCircuitBreaker returns a closed breaker configured by cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		isFailure:    cfg.IsFailure,
		onChange:     cfg.OnStateChange,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 5
	}
	if cb.resetTimeout <= 0 {
		cb.resetTimeout = 30 * time.Second
	}
	if cb.halfOpenMax <= 0 {
		cb.halfOpenMax = 3
	}
	if cb.isFailure == nil {
		cb.isFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return cb
}

// Execute calls fn unless the breaker is open, in which case it returns
// [ErrCircuitOpen]. fn's error is returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(trial, err)
	return err
}

// admit decides whether a call may proceed and whether it is a trial call.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.trials, cb.passed = 0, 0
		cb.transition(StateHalfOpen)
		slog.Info("circuit breaker half-open", "name", cb.name)
	}
	if cb.state == StateHalfOpen {
		if cb.trials >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.trials++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial && cb.state != StateHalfOpen {
		// A concurrent trial call already decided the outcome.
		return
	}
	switch {
	case err == nil && trial:
		cb.passed++
		if cb.passed >= cb.halfOpenMax {
			cb.close()
			slog.Info("circuit breaker closed", "name", cb.name)
		}
	case err == nil:
		cb.failures = 0
	case !cb.isFailure(err):
		if trial {
			cb.trials--
		}
	case trial:
		cb.trip()
		slog.Warn("circuit breaker trial call failed, reopening", "name", cb.name, "err", err)
	default:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.trip()
			slog.Warn("circuit breaker opened", "name", cb.name, "consecutive_failures", cb.failures)
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) close() {
	cb.failures, cb.trials, cb.passed = 0, 0, 0
	cb.transition(StateClosed)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

// State returns the breaker's mode. An open breaker whose reset timeout has
// passed reports [StateHalfOpen]; the transition itself happens on the next
// call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset closes the breaker and forgets all failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.close()
	slog.Info("circuit breaker reset", "name", cb.name)
}
