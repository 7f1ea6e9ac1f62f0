package capture

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestLock(t *testing.T) {
	t.Parallel()

	var l Lock
	if l.TryAcquire("") {
		t.Fatal("empty owner acquired the lock")
	}
	if !l.TryAcquire("a") {
		t.Fatal("TryAcquire(a) failed on a free lock")
	}
	if l.TryAcquire("a") {
		t.Error("TryAcquire(a) succeeded twice")
	}
	if l.TryAcquire("b") {
		t.Error("TryAcquire(b) succeeded while a holds the lock")
	}
	if l.Release("b") {
		t.Error("Release(b) freed a's lock")
	}
	if got := l.Holder(); got != "a" {
		t.Errorf("Holder() = %q, want a", got)
	}
	if !l.Release("a") {
		t.Error("Release(a) failed")
	}
	if got := l.Holder(); got != "" {
		t.Errorf("Holder() = %q after release", got)
	}
	if !l.TryAcquire("b") {
		t.Error("TryAcquire(b) failed after release")
	}
}

func TestLock_Concurrent(t *testing.T) {
	t.Parallel()

	var (
		l    Lock
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire(string(rune('A' + i))) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Errorf("%d owners acquired the lock, want 1", got)
	}
}
