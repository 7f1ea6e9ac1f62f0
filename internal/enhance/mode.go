package enhance

import (
	"log/slog"
	"strings"
)

// Mode selects what the [Gateway] asks the language model to do.
type Mode string

const (
	// ModeOff disables enhancement; text passes through unchanged.
	ModeOff Mode = "off"

	// ModePolish fixes grammar and punctuation without changing wording.
	ModePolish Mode = "polish"

	// ModeStyled polishes and then applies the style configured for the
	// focused application, if any.
	ModeStyled Mode = "styled"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeOff, ModePolish, ModeStyled:
		return true
	}
	return false
}

// ParseMode decodes s case-insensitively. The empty string and unknown
// values decode to [ModeOff]; unknown values are logged.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeOff
	}
	if !m.IsValid() {
		slog.Warn("enhance: unknown mode, enhancement disabled", "mode", s)
		return ModeOff
	}
	return m
}
