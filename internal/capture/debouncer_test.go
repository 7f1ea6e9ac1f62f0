package capture_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/flux/internal/capture"
	"github.com/MrWong99/flux/internal/capture/mock"
)

func runDebouncer(t *testing.T, d *capture.Debouncer) (chan<- bool, func()) {
	t.Helper()
	edges := make(chan bool)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx, edges)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return edges, stop
}

func TestDebouncer_HoldEmitsBeginThenEnd(t *testing.T) {
	t.Parallel()

	sink := &mock.Intents{}
	edges, _ := runDebouncer(t, capture.NewDebouncer(sink, capture.WithDebounce(10*time.Millisecond)))

	edges <- true
	edges <- true // duplicate press
	waitFor(t, "begin", func() bool { return len(sink.Events()) == 1 })
	edges <- false
	edges <- false // duplicate release
	waitFor(t, "end", func() bool { return len(sink.Events()) == 2 })

	time.Sleep(20 * time.Millisecond)
	if got, want := sink.Events(), []string{"begin", "end"}; !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestDebouncer_TapShorterThanDelay(t *testing.T) {
	t.Parallel()

	sink := &mock.Intents{}
	edges, stop := runDebouncer(t, capture.NewDebouncer(sink, capture.WithDebounce(50*time.Millisecond)))

	edges <- true
	edges <- false
	time.Sleep(80 * time.Millisecond)
	stop()

	if got := sink.Events(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestDebouncer_FailsafeRelease(t *testing.T) {
	t.Parallel()

	held := &mock.Held{}
	held.Set(true)
	sink := &mock.Intents{}
	edges, _ := runDebouncer(t, capture.NewDebouncer(sink,
		capture.WithDebounce(5*time.Millisecond),
		capture.WithHeldPoll(held, 5*time.Millisecond),
	))

	edges <- true
	waitFor(t, "begin", func() bool { return len(sink.Events()) == 1 })
	held.Set(false) // the release edge is lost
	waitFor(t, "synthesized end", func() bool { return len(sink.Events()) == 2 })

	// A later real release edge is a duplicate.
	edges <- false
	time.Sleep(20 * time.Millisecond)
	if got := len(sink.Events()); got != 2 {
		t.Errorf("got %d events, want 2", got)
	}
}

func TestDebouncer_ClosedEdgesReleases(t *testing.T) {
	t.Parallel()

	sink := &mock.Intents{}
	d := capture.NewDebouncer(sink, capture.WithDebounce(time.Millisecond))
	edges := make(chan bool)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), edges) }()

	edges <- true
	waitFor(t, "begin", func() bool { return len(sink.Events()) == 1 })
	close(edges)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after edges closed")
	}
	if got, want := sink.Events(), []string{"begin", "end"}; !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestDebouncer_DrivesController(t *testing.T) {
	t.Parallel()

	h := newHarness(t, capture.Config{}, nil)
	edges, _ := runDebouncer(t, capture.NewDebouncer(h.ctrl, capture.WithDebounce(5*time.Millisecond)))

	edges <- true
	waitFor(t, "recorder started", func() bool { return h.rec.Sessions() == 1 })
	edges <- false
	waitFor(t, "state stopping", func() bool { return h.ctrl.State() == capture.StateStopping })
	h.rec.Transcribe("wire it up")
	h.waitRecords(t, 1)
}
