// Package recording captures one utterance from a microphone and transcribes
// it once the capture stops.
//
// A [Session] implements the recorder contract used by the capture
// controller: after a successful Start, exactly one of the transcript or
// failure callbacks runs, once, after Stop (or earlier if the stream fails).
// Cancel discards the capture instead: the audio is dropped without being
// transcribed and no callback runs for it.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/flux/pkg/audio"
	"github.com/MrWong99/flux/pkg/provider/stt"
	"github.com/MrWong99/flux/pkg/types"
)

// ErrAlreadyRecording is returned by [Session.Start] while a capture is
// running.
var ErrAlreadyRecording = errors.New("recording: already recording")

// Format describes the PCM stream requested from a [Source].
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 16 kHz mono, which every supported transcriber accepts.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1}

// Source opens microphone streams.
type Source interface {
	Open(f Format) (Stream, error)
}

// Stream yields 16-bit samples. Read blocks until the next chunk is
// available.
type Stream interface {
	Read() ([]int16, error)
	Close() error
}

const defaultTranscribeTimeout = 30 * time.Second

// Session records from a [Source] and hands the clip to a transcriber. It is
// safe for concurrent use.
type Session struct {
	src     Source
	tr      stt.Transcriber
	format  Format
	timeout time.Duration

	mu        sync.Mutex
	recording bool
	cur       *take

	level atomic.Uint64
}

// take is the state of one Start.
type take struct {
	stop    chan struct{}
	ctx     context.Context
	abort   context.CancelFunc
	discard atomic.Bool
}

func (t *take) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// Option configures a [Session].
type Option func(*Session)

// WithFormat overrides [DefaultFormat].
func WithFormat(f Format) Option {
	return func(s *Session) {
		if f.SampleRate > 0 && f.Channels > 0 {
			s.format = f
		}
	}
}

// WithTranscribeTimeout bounds a single transcription request.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns an idle session.
func New(src Source, tr stt.Transcriber, opts ...Option) *Session {
	s := &Session{
		src:     src,
		tr:      tr,
		format:  DefaultFormat,
		timeout: defaultTranscribeTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start opens the stream and begins capturing. The callbacks may run on any
// goroutine.
func (s *Session) Start(onTranscript func(text string, elapsed time.Duration), onFailure func(err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return ErrAlreadyRecording
	}
	stream, err := s.src.Open(s.format)
	if err != nil {
		return fmt.Errorf("recording: open stream: %w", err)
	}

	var once sync.Once
	report := func(text string, elapsed time.Duration, err error) {
		once.Do(func() {
			if err != nil {
				onFailure(err)
				return
			}
			onTranscript(text, elapsed)
		})
	}

	t := &take{stop: make(chan struct{})}
	t.ctx, t.abort = context.WithCancel(context.Background())
	s.cur = t
	s.recording = true
	go s.capture(stream, t, report)
	return nil
}

// Stop ends the capture. Transcription continues in the background.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	close(s.cur.stop)
	s.recording = false
}

// Cancel ends the capture, or the transcription still running for it, and
// drops the audio without transcribing it. Callbacks are skipped unless a
// result was already being reported.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.cur
	if t == nil {
		return
	}
	t.discard.Store(true)
	t.abort()
	if s.recording {
		close(t.stop)
		s.recording = false
	}
}

// IsRecording reports whether a capture is running.
func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Level returns the normalised RMS of the most recent chunk, in [0, 1]. It is
// zero while idle.
func (s *Session) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

func (s *Session) capture(stream Stream, t *take, report func(string, time.Duration, error)) {
	defer t.abort()
	var (
		pcm, chunk []byte
		readErr    error
	)
	for !t.stopped() {
		samples, err := stream.Read()
		if err != nil {
			readErr = err
			break
		}
		chunk = audio.Int16ToBytes(chunk, samples)
		pcm = append(pcm, chunk...)
		s.level.Store(math.Float64bits(audio.Level(chunk)))
	}
	if err := stream.Close(); err != nil {
		slog.Debug("recording: stream close failed", "err", err)
	}
	s.level.Store(0)

	if t.discard.Load() {
		slog.Debug("recording: capture cancelled, audio dropped", "bytes", len(pcm))
		return
	}
	if readErr != nil && !t.stopped() {
		s.abandon(t)
		report("", 0, fmt.Errorf("recording: read stream: %w", readErr))
		return
	}

	clip := types.AudioClip{PCM: pcm, SampleRate: s.format.SampleRate, Channels: s.format.Channels}
	if clip.Empty() {
		report("", 0, stt.ErrEmptyAudio)
		return
	}

	ctx, cancel := context.WithTimeout(t.ctx, s.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.tr.Transcribe(ctx, clip)
	if t.discard.Load() {
		slog.Debug("recording: transcription cancelled", "err", err)
		return
	}
	if err != nil {
		report("", 0, fmt.Errorf("recording: transcribe %s clip: %w", clip.Duration().Round(time.Millisecond), err))
		return
	}
	report(res.Text, time.Since(start), nil)
}

// abandon marks the session idle after the stream failed on its own.
func (s *Session) abandon(t *take) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == t && s.recording {
		close(t.stop)
		s.recording = false
	}
}
