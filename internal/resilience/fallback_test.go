package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGroup(cfg FallbackConfig, names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup(names[0], names[0], cfg)
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestExecuteWithResult(t *testing.T) {
	t.Parallel()
	errFinal := errors.New("no audio")
	tests := []struct {
		name      string
		failing   map[string]error
		final     func(error) bool
		want      string
		wantCalls []string
		wantErr   error
	}{
		{
			name:      "primary answers",
			want:      "local",
			wantCalls: []string{"local"},
		},
		{
			name:      "fails over in order",
			failing:   map[string]error{"local": errTest},
			want:      "cloud",
			wantCalls: []string{"local", "cloud"},
		},
		{
			name:      "all fail",
			failing:   map[string]error{"local": errTest, "cloud": errTest, "backup": errTest},
			wantCalls: []string{"local", "cloud", "backup"},
			wantErr:   ErrAllFailed,
		},
		{
			name:      "final error stops the walk",
			failing:   map[string]error{"local": errFinal},
			final:     func(err error) bool { return errors.Is(err, errFinal) },
			wantCalls: []string{"local"},
			wantErr:   errFinal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fg := newGroup(FallbackConfig{Final: tt.final}, "local", "cloud", "backup")
			var calls []string
			got, err := ExecuteWithResult(context.Background(), fg, func(v string) (string, error) {
				calls = append(calls, v)
				if err := tt.failing[v]; err != nil {
					return "", err
				}
				return v, nil
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil || got != tt.want {
				t.Fatalf("got %q, %v; want %q", got, err, tt.want)
			}
			if len(calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %v, want %v", calls, tt.wantCalls)
			}
			for i := range calls {
				if calls[i] != tt.wantCalls[i] {
					t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
					break
				}
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()
	fg := newGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	}, "local", "cloud")

	failLocal := func(v string) error {
		if v == "local" {
			return errTest
		}
		return nil
	}
	for range 2 {
		if err := fg.Execute(context.Background(), failLocal); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	states := fg.States()
	if states["local"] != StateOpen || states["cloud"] != StateClosed {
		t.Fatalf("States() = %v, want local open and cloud closed", states)
	}

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(called) != 1 || called[0] != "cloud" {
		t.Fatalf("called = %v, want [cloud]", called)
	}
}

func TestFallbackGroup_DoneContextSkipsEntries(t *testing.T) {
	t.Parallel()
	fg := newGroup(FallbackConfig{}, "local", "cloud")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := 0
	err := fg.Execute(ctx, func(string) error {
		called++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if called != 0 {
		t.Fatalf("called %d times, want 0", called)
	}
	if got := fg.Values(); len(got) != 2 || got[0] != "local" || got[1] != "cloud" {
		t.Fatalf("Values() = %v, want [local cloud]", got)
	}
}
