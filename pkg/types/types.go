// Package types defines the shared types used across Flux packages.
//
// These types form the lingua franca between providers, the capture
// controller and the delivery layer. Each package defines its own domain
// types; cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// AudioClip is a complete mono recording handed to a batch transcriber.
type AudioClip struct {
	// PCM holds signed 16-bit little-endian samples.
	PCM []byte

	// SampleRate is the sample rate in Hz (typically 16000).
	SampleRate int

	// Channels is the number of interleaved channels (1 for mono).
	Channels int
}

// Duration returns the playback length of the clip. A clip with a zero
// sample rate or channel count has zero duration.
func (c AudioClip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	samples := len(c.PCM) / 2 / c.Channels
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Empty reports whether the clip carries no samples.
func (c AudioClip) Empty() bool {
	return len(c.PCM) < 2
}

// AppContext identifies the application that had focus when an attempt began.
// It is used to pick per-application enhancement styles and is stored in history.
type AppContext struct {
	// Name is the process or application name (e.g., "slack", "code").
	Name string

	// Title is the focused window title, if known.
	Title string

	// PID is the process id of the focused window, or 0 if unknown.
	PID int
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
