package auth

import (
	"sync"
	"time"
)

const (
	maxFailedAttempts = 5
	lockoutWindow     = 15 * time.Minute
)

// Throttle tracks failed login attempts per client address. Implementations
// must be safe for concurrent use; the in-memory one below is only correct
// for a single-process deployment, a multi-instance setup needs a shared
// store behind the same interface.
type Throttle interface {
	RecordFailure(addr string)
	Reset(addr string)
	IsLocked(addr string) bool
}

type attempt struct {
	count       int
	lastFailure time.Time
}

// MemoryThrottle is the in-memory Throttle. Entries whose window has elapsed
// are dropped on the next lookup.
type MemoryThrottle struct {
	mu       sync.Mutex
	attempts map[string]attempt
	now      func() time.Time
}

func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{
		attempts: make(map[string]attempt),
		now:      time.Now,
	}
}

func (t *MemoryThrottle) RecordFailure(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.attempts[addr]
	if t.now().Sub(a.lastFailure) >= lockoutWindow {
		a.count = 0
	}
	a.count++
	a.lastFailure = t.now()
	t.attempts[addr] = a
}

func (t *MemoryThrottle) Reset(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, addr)
}

func (t *MemoryThrottle) IsLocked(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.attempts[addr]
	if !ok {
		return false
	}
	if t.now().Sub(a.lastFailure) >= lockoutWindow {
		delete(t.attempts, addr)
		return false
	}
	return a.count >= maxFailedAttempts
}
