// Package gohook feeds global keyboard events from robotn/gohook into a
// [trigger.Tracker]. It requires cgo and an active desktop session.
package gohook

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/MrWong99/flux/internal/trigger"
)

var (
	namesOnce sync.Once
	names     map[uint16]string
)

// keyNames inverts hook.Keycode. When several names share a code the
// shortest one wins, so "ctrl" is preferred over longer spellings.
func keyNames() map[uint16]string {
	namesOnce.Do(func() {
		names = make(map[uint16]string, len(hook.Keycode))
		for name, code := range hook.Keycode {
			if cur, ok := names[code]; !ok || len(name) < len(cur) || (len(name) == len(cur) && name < cur) {
				names[code] = name
			}
		}
	})
	return names
}

// Run starts the global hook and forwards key events to t until ctx is done.
// Only one hook can run per process.
func Run(ctx context.Context, t *trigger.Tracker) error {
	events := hook.Start()
	defer hook.End()
	defer t.Reset()

	slog.Info("gohook: global keyboard hook started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("gohook: event channel closed")
			}
			name, known := keyNames()[ev.Keycode]
			if !known {
				name = hook.RawcodetoKeychar(ev.Rawcode)
			}
			switch ev.Kind {
			case hook.KeyDown, hook.KeyHold:
				t.KeyDown(name)
			case hook.KeyUp:
				t.KeyUp(name)
			}
		}
	}
}
