package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed wraps the last error once every entry of a [FallbackGroup]
// has failed or been skipped.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for every entry's breaker. Its Name is
	// replaced by the entry name.
	CircuitBreaker CircuitBreakerConfig

	// Final reports errors that no other entry could fix, such as a clip
	// without audio. They are returned as-is without trying the next entry.
	Final func(error) bool
}

// Reporter exposes the breaker states of a fallback provider.
type Reporter interface {
	States() map[string]State
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary backend and its fallbacks in the order they
// are tried. Entries must be added before the group is shared; calls are then
// safe for concurrent use.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, name string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(name, primary)
	return fg
}

// AddFallback appends v behind the entries already present.
func (fg *FallbackGroup[T]) AddFallback(name string, v T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.members = append(fg.members, member[T]{name: name, value: v, breaker: NewCircuitBreaker(bc)})
}

// Values returns the backends in try order.
func (fg *FallbackGroup[T]) Values() []T {
	out := make([]T, 0, len(fg.members))
	for _, m := range fg.members {
		out = append(out, m.value)
	}
	return out
}

// States reports each entry's breaker state by name.
func (fg *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(fg.members))
	for _, m := range fg.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Execute runs fn against one entry after another until it succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult runs fn against the entries of fg in order and returns
// the first successful result. Entries with an open breaker are skipped. A
// done ctx stops the walk with ctx.Err(); a [FallbackConfig.Final] error stops
// it with that error. Otherwise the last error is wrapped in [ErrAllFailed].
func ExecuteWithResult[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var zero R
	var last error
	for _, m := range fg.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := m.breaker.Execute(func() (err error) {
			out, err = fn(m.value)
			return err
		})
		switch {
		case err == nil:
			return out, nil
		case fg.cfg.Final != nil && fg.cfg.Final(err):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("provider skipped, circuit open", "provider", m.name)
		default:
			slog.Warn("provider failed, trying next", "provider", m.name, "err", err)
		}
		last = err
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, last)
}
