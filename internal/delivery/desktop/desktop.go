// Package desktop implements the delivery collaborators on top of the host
// desktop: the system clipboard, synthetic keyboard input, and focused-window
// detection. It requires cgo and a display and is exercised through the
// interfaces in package delivery.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"

	"github.com/MrWong99/flux/internal/delivery"
	"github.com/MrWong99/flux/pkg/types"
)

// Insertion methods accepted by [NewInserter].
const (
	MethodType  = "type"
	MethodPaste = "paste"
)

const (
	pasteSettle   = 80 * time.Millisecond
	restoreSettle = 120 * time.Millisecond
)

// Clipboard is the system clipboard.
type Clipboard struct {
	guard *delivery.Guard
}

var _ delivery.Clipboard = (*Clipboard)(nil)

// NewClipboard returns a clipboard whose self-writes are tracked by guard.
// A nil guard gets a private one.
func NewClipboard(guard *delivery.Guard) *Clipboard {
	if guard == nil {
		guard = &delivery.Guard{}
	}
	return &Clipboard{guard: guard}
}

// Write replaces the clipboard contents.
func (c *Clipboard) Write(text string) error {
	if clipboard.Unsupported {
		return errors.New("desktop: clipboard unsupported on this system")
	}
	return clipboard.WriteAll(text)
}

// Read returns the clipboard contents.
func (c *Clipboard) Read() (string, error) {
	return clipboard.ReadAll()
}

// BeginSelfWrite implements [delivery.Clipboard].
func (c *Clipboard) BeginSelfWrite() { c.guard.Begin() }

// EndSelfWrite implements [delivery.Clipboard].
func (c *Clipboard) EndSelfWrite() { c.guard.End() }

// Suppressed reports whether a self-originated write is in progress.
func (c *Clipboard) Suppressed() bool { return c.guard.Suppressed() }

// Inserter types text into the focused window.
type Inserter struct {
	method    string
	clipboard *Clipboard
}

var _ delivery.Inserter = (*Inserter)(nil)

// NewInserter returns an inserter. MethodPaste goes through clip and restores
// its previous contents afterwards; any other method types the text key by
// key.
func NewInserter(method string, clip *Clipboard) *Inserter {
	if method != MethodPaste || clip == nil {
		method = MethodType
	}
	return &Inserter{method: method, clipboard: clip}
}

// InsertAtFocus implements [delivery.Inserter].
func (i *Inserter) InsertAtFocus(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if robotgo.GetPid() == 0 {
		return errors.New("desktop: no focused window")
	}
	if i.method == MethodType {
		robotgo.TypeStr(text)
		return nil
	}
	return i.paste(ctx, text)
}

func (i *Inserter) paste(ctx context.Context, text string) error {
	i.clipboard.BeginSelfWrite()
	defer i.clipboard.EndSelfWrite()
	return swapPaste(ctx, i.clipboard, text, func() error {
		return robotgo.KeyTap("v", pasteModifier())
	})
}

type textClipboard interface {
	Read() (string, error)
	Write(text string) error
}

// swapPaste puts text on clip, sends the paste keystroke, and restores what
// clip held before. When the old contents could not be read they are left
// alone rather than replaced with nothing.
func swapPaste(ctx context.Context, clip textClipboard, text string, keystroke func() error) error {
	orig, readErr := clip.Read()
	if readErr != nil {
		slog.Warn("desktop: clipboard read failed, contents will not be restored", "err", readErr)
	}
	if err := clip.Write(text); err != nil {
		return fmt.Errorf("desktop: paste: %w", err)
	}
	if err := sleep(ctx, pasteSettle); err != nil {
		return err
	}
	if err := keystroke(); err != nil {
		return fmt.Errorf("desktop: paste keystroke: %w", err)
	}
	if readErr != nil {
		return nil
	}
	// Give the target time to read the clipboard before restoring it.
	if err := sleep(ctx, restoreSettle); err != nil {
		slog.Debug("desktop: restoring clipboard early", "err", err)
	}
	if err := clip.Write(orig); err != nil {
		slog.Warn("desktop: clipboard restore failed", "err", err)
	}
	return nil
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Apps reports the focused application.
type Apps struct{}

// ActiveApp returns the process name, window title, and PID of the focused
// window. Unknown fields are left empty.
func (Apps) ActiveApp() types.AppContext {
	pid := robotgo.GetPid()
	if pid == 0 {
		return types.AppContext{}
	}
	app := types.AppContext{PID: pid, Title: robotgo.GetTitle()}
	if name, err := robotgo.FindName(pid); err == nil {
		app.Name = name
	}
	return app
}
