// Package delivery hands finished text to its destination.
//
// The [Router] tries to type the text into the focused input field and falls
// back to the system clipboard. Concrete desktop adapters live in the
// desktop subpackage; everything here is platform independent.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Target selects where a flow delivers its text.
type Target string

const (
	// TargetFocus inserts at the focused input, falling back to the clipboard.
	TargetFocus Target = "focus"

	// TargetClipboard writes to the clipboard only.
	TargetClipboard Target = "clipboard"
)

// IsValid reports whether t is a known target.
func (t Target) IsValid() bool {
	return t == TargetFocus || t == TargetClipboard
}

// Kind classifies a delivery [Outcome].
type Kind string

const (
	// OutcomeInserted means the text was typed into the focused input.
	OutcomeInserted Kind = "inserted"

	// OutcomeClipboard means the text was written to the clipboard.
	OutcomeClipboard Kind = "clipboard"

	// OutcomeFailed means neither path succeeded.
	OutcomeFailed Kind = "failed"
)

// Outcome reports which delivery path succeeded.
type Outcome struct {
	Kind Kind

	// Reason describes the failure when Kind is [OutcomeFailed], or why the
	// clipboard fallback was used.
	Reason string
}

// Delivered reports whether the text reached any destination.
func (o Outcome) Delivered() bool { return o.Kind == OutcomeInserted || o.Kind == OutcomeClipboard }

// Inserter types text into the currently focused input field.
type Inserter interface {
	InsertAtFocus(ctx context.Context, text string) error
}

// Clipboard is the system clipboard. Writes made by this process are
// bracketed by BeginSelfWrite and EndSelfWrite so that clipboard watchers
// elsewhere in the process can ignore them.
type Clipboard interface {
	Write(text string) error
	BeginSelfWrite()
	EndSelfWrite()
}

// ErrNothingToDeliver is reported for blank text.
var ErrNothingToDeliver = errors.New("delivery: nothing to deliver")

// Router delivers text to one [Target]. It never panics and never returns
// an error; failures are reported through the [Outcome].
type Router struct {
	target    Target
	inserter  Inserter
	clipboard Clipboard
}

// NewRouter returns a router for target. Either collaborator may be nil, in
// which case its path always fails.
func NewRouter(target Target, inserter Inserter, clipboard Clipboard) *Router {
	if !target.IsValid() {
		target = TargetFocus
	}
	return &Router{target: target, inserter: inserter, clipboard: clipboard}
}

// Target returns the configured target.
func (r *Router) Target() Target { return r.target }

// Deliver sends text to the configured target.
func (r *Router) Deliver(ctx context.Context, text string) Outcome {
	if text == "" {
		return Outcome{Kind: OutcomeFailed, Reason: ErrNothingToDeliver.Error()}
	}

	var insertErr error
	if r.target == TargetFocus {
		insertErr = r.insert(ctx, text)
		if insertErr == nil {
			return Outcome{Kind: OutcomeInserted}
		}
		slog.Warn("delivery: insert at focus failed, falling back to clipboard", "err", insertErr)
	}

	if err := r.writeClipboard(text); err != nil {
		reason := err.Error()
		if insertErr != nil {
			reason = fmt.Sprintf("insert: %v; clipboard: %v", insertErr, err)
		}
		return Outcome{Kind: OutcomeFailed, Reason: reason}
	}
	out := Outcome{Kind: OutcomeClipboard}
	if insertErr != nil {
		out.Reason = insertErr.Error()
	}
	return out
}

func (r *Router) insert(ctx context.Context, text string) (err error) {
	if r.inserter == nil {
		return errors.New("delivery: no inserter configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("delivery: inserter panicked: %v", p)
		}
	}()
	return r.inserter.InsertAtFocus(ctx, text)
}

func (r *Router) writeClipboard(text string) (err error) {
	if r.clipboard == nil {
		return errors.New("delivery: no clipboard configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("delivery: clipboard panicked: %v", p)
		}
	}()
	r.clipboard.BeginSelfWrite()
	defer r.clipboard.EndSelfWrite()
	if err := r.clipboard.Write(text); err != nil {
		return fmt.Errorf("delivery: clipboard write: %w", err)
	}
	return nil
}

// Guard is a balanced self-write counter for [Clipboard] implementations.
// The zero value is ready to use and safe for concurrent use.
type Guard struct {
	depth atomic.Int32
}

// Begin marks the start of a self-originated write.
func (g *Guard) Begin() { g.depth.Add(1) }

// End marks the end of a self-originated write. Unbalanced calls are
// ignored so the counter never goes negative.
func (g *Guard) End() {
	for {
		d := g.depth.Load()
		if d <= 0 || g.depth.CompareAndSwap(d, d-1) {
			return
		}
	}
}

// Suppressed reports whether a self-originated write is in progress.
func (g *Guard) Suppressed() bool { return g.depth.Load() > 0 }
