// Package notify shows short user-facing messages about failed attempts.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier delivers a one-line message to the user.
type Notifier interface {
	Notify(title, message string) error
}

// Desktop shows native desktop notifications.
type Desktop struct {
	// Icon is an optional path to an icon file.
	Icon string
}

var _ Notifier = (*Desktop)(nil)

// Notify implements [Notifier].
func (d *Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, d.Icon)
}

// Log writes notifications to the default logger. It is used when desktop
// notifications are disabled.
type Log struct{}

var _ Notifier = Log{}

// Notify implements [Notifier].
func (Log) Notify(title, message string) error {
	slog.Warn(message, "title", title)
	return nil
}

// Fallback tries Primary and writes to the log when it fails.
type Fallback struct {
	Primary Notifier
}

var _ Notifier = Fallback{}

// Notify implements [Notifier]. It never returns an error.
func (f Fallback) Notify(title, message string) error {
	if f.Primary != nil {
		err := f.Primary.Notify(title, message)
		if err == nil {
			return nil
		}
		slog.Debug("notify: desktop notification failed", "err", err)
	}
	return Log{}.Notify(title, message)
}
