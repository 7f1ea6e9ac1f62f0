package capture

import "sync"

// Lock is held by the live attempt of whichever [Controller] is recording.
// Controllers for different flows share one Lock so that at most one attempt
// runs process-wide. The zero value is unlocked and ready to use.
type Lock struct {
	mu     sync.Mutex
	holder string
}

// TryAcquire takes the lock for owner. It returns false if anyone, owner
// included, already holds it.
func (l *Lock) TryAcquire(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" || owner == "" {
		return false
	}
	l.holder = owner
	return true
}

// Release frees the lock if owner holds it and reports whether it did.
func (l *Lock) Release(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != owner || owner == "" {
		return false
	}
	l.holder = ""
	return true
}

// Holder returns the current owner, or the empty string.
func (l *Lock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
