// Package trigger tracks global key state and reports when configured key
// combinations are held.
//
// A platform hook feeds key presses and releases into a [Tracker]. Each
// [Watch] on the tracker yields a stream of held/released edges for one
// [Combo] and answers "is it held right now" for the failsafe poll.
package trigger

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// ErrEmptyCombo is returned by [ParseCombo] for a combination without keys.
var ErrEmptyCombo = errors.New("trigger: empty key combination")

// aliases maps accepted spellings onto canonical key names.
var aliases = map[string]string{
	"control":  "ctrl",
	"lctrl":    "ctrl",
	"rctrl":    "ctrl",
	"option":   "alt",
	"opt":      "alt",
	"lalt":     "alt",
	"ralt":     "alt",
	"altgr":    "alt",
	"lshift":   "shift",
	"rshift":   "shift",
	"command":  "cmd",
	"super":    "cmd",
	"meta":     "cmd",
	"win":      "cmd",
	"lcmd":     "cmd",
	"rcmd":     "cmd",
	"spacebar": "space",
	"return":   "enter",
	"escape":   "esc",
}

var modifierOrder = []string{"ctrl", "alt", "shift", "cmd", "fn"}

// Normalize returns the canonical name of key.
func Normalize(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if a, ok := aliases[k]; ok {
		return a
	}
	return k
}

// Combo is a set of keys that must all be held together. Modifiers match
// exactly: an extra modifier held alongside releases the combination.
type Combo struct {
	keys []string
}

// ParseCombo parses a "+"-separated combination such as "ctrl+alt+space".
// Key names are case-insensitive and aliases like "control" or "command" are
// accepted.
func ParseCombo(s string) (Combo, error) {
	var keys []string
	for part := range strings.SplitSeq(s, "+") {
		k := Normalize(part)
		if k == "" {
			if strings.TrimSpace(s) == "" {
				return Combo{}, ErrEmptyCombo
			}
			return Combo{}, fmt.Errorf("trigger: empty key in %q", s)
		}
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeys)
	return Combo{keys: keys}, nil
}

// MustParseCombo is like [ParseCombo] but panics on error.
func MustParseCombo(s string) Combo {
	c, err := ParseCombo(s)
	if err != nil {
		panic(err)
	}
	return c
}

// compareKeys orders modifiers first in a fixed order, then other keys
// alphabetically.
func compareKeys(a, b string) int {
	ia, ib := slices.Index(modifierOrder, a), slices.Index(modifierOrder, b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Keys returns the canonical key names.
func (c Combo) Keys() []string { return slices.Clone(c.keys) }

// IsZero reports whether c has no keys.
func (c Combo) IsZero() bool { return len(c.keys) == 0 }

func (c Combo) String() string { return strings.Join(c.keys, "+") }

// Tracker records which keys are pressed and notifies watches. It is safe
// for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pressed map[string]bool
	watches []*Watch
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pressed: make(map[string]bool)}
}

// edgeBuffer bounds undelivered edges per watch. A consumer that falls this
// far behind loses edges; the failsafe poll recovers a lost release.
const edgeBuffer = 16

// Watch follows one combination on a [Tracker].
type Watch struct {
	t     *Tracker
	combo Combo
	held  bool
	edges chan bool
}

// Watch registers c and returns its watch.
func (t *Tracker) Watch(c Combo) *Watch {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := &Watch{t: t, combo: c, edges: make(chan bool, edgeBuffer)}
	t.watches = append(t.watches, w)
	return w
}

// KeyDown records a press. Repeated presses of a held key are ignored.
func (t *Tracker) KeyDown(key string) { t.set(Normalize(key), true) }

// KeyUp records a release.
func (t *Tracker) KeyUp(key string) { t.set(Normalize(key), false) }

// Reset releases every key, for example after the hook lost focus events.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.pressed)
	t.update()
}

func (t *Tracker) set(key string, down bool) {
	if key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pressed[key] == down {
		return
	}
	if down {
		t.pressed[key] = true
	} else {
		delete(t.pressed, key)
	}
	t.update()
}

// update emits an edge for each watch whose held state changed. Caller holds
// t.mu.
func (t *Tracker) update() {
	for _, w := range t.watches {
		held := t.allPressed(w.combo)
		if held == w.held {
			continue
		}
		w.held = held
		select {
		case w.edges <- held:
		default:
			slog.Debug("trigger: edge dropped, consumer is behind", "combo", w.combo.String(), "held", held)
		}
	}
}

// allPressed reports whether every key of c is pressed and no modifier
// outside c is, so that ctrl+alt+shift+space does not also hold
// ctrl+alt+space.
func (t *Tracker) allPressed(c Combo) bool {
	if c.IsZero() {
		return false
	}
	for _, k := range c.keys {
		if !t.pressed[k] {
			return false
		}
	}
	for _, m := range modifierOrder {
		if t.pressed[m] && !slices.Contains(c.keys, m) {
			return false
		}
	}
	return true
}

// Combo returns the watched combination.
func (w *Watch) Combo() Combo { return w.combo }

// Edges yields true when the combination becomes held and false when it is
// released.
func (w *Watch) Edges() <-chan bool { return w.edges }

// IsComboHeldNow reports whether the combination is held, with no extra
// modifier.
func (w *Watch) IsComboHeldNow() bool {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()
	return w.t.allPressed(w.combo)
}
