// Package portaudio provides a microphone [recording.Source] and a capture
// permission check backed by PortAudio. It requires cgo and the PortAudio
// shared library.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/flux/internal/recording"
)

// DefaultFramesPerBuffer is 64 ms at 16 kHz.
const DefaultFramesPerBuffer = 1024

// Source opens the default input device.
type Source struct {
	// FramesPerBuffer is the chunk size of each Read. Zero means
	// [DefaultFramesPerBuffer].
	FramesPerBuffer int
}

var _ recording.Source = (*Source)(nil)

// Open initialises PortAudio and starts a stream on the default input
// device. PortAudio is terminated again when the stream is closed.
func (s *Source) Open(f recording.Format) (recording.Stream, error) {
	frames := s.FramesPerBuffer
	if frames <= 0 {
		frames = DefaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	buf := make([]int16, frames*f.Channels)
	st, err := portaudio.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), frames, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open default stream: %w", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	return &stream{st: st, buf: buf}, nil
}

type stream struct {
	st  *portaudio.Stream
	buf []int16
}

// Read blocks for one buffer. Input overflows are tolerated; the samples
// that did arrive are returned.
func (s *stream) Read() ([]int16, error) {
	if err := s.st.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, err
	}
	return slices.Clone(s.buf), nil
}

func (s *stream) Close() error {
	return errors.Join(s.st.Stop(), s.st.Close(), portaudio.Terminate())
}

// Permission checks microphone access by briefly opening the default input
// device. On systems that gate the microphone this is what raises the
// permission prompt.
type Permission struct{}

// RequestPermission returns true when the default input device can be
// opened. It returns false with ctx's error if ctx ends first.
func (Permission) RequestPermission(ctx context.Context) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := detect()
		done <- result{ok, err}
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-done:
		return r.ok, r.err
	}
}

func detect() (bool, error) {
	if err := portaudio.Initialize(); err != nil {
		return false, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return false, fmt.Errorf("portaudio: default input device: %w", err)
	}
	if dev == nil || dev.MaxInputChannels < 1 {
		return false, nil
	}
	buf := make([]int16, 64)
	st, err := portaudio.OpenDefaultStream(1, 0, dev.DefaultSampleRate, len(buf), buf)
	if err != nil {
		return false, nil
	}
	defer st.Close()
	if err := st.Start(); err != nil {
		return false, nil
	}
	_ = st.Stop()
	return true, nil
}
