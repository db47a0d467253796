// Package debounce provides a per-key rate limiter for opportunistic
// maintenance work triggered on read paths.
package debounce

import (
	"sync"
	"time"
)

// Limiter remembers when each key last ran and allows a run only after
// the interval has elapsed. It is owned by whoever constructs it, not a
// package-level singleton, so tests can isolate keys and inject a clock.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastRun  map[string]time.Time
	now      func() time.Time
}

// New creates a limiter with the given minimum interval between runs
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// WithClock overrides the clock, for tests
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

// Allow reports whether the key may run now, recording the run if so.
// The check-and-record is atomic per key, but callers racing on the
// boundary of the interval may still both be allowed on different
// limiter instances (different processes); downstream work must
// tolerate that.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastRun[key]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastRun[key] = now
	return true
}

// Reset forgets the key's last run
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastRun, key)
}

// Prune drops entries older than the interval to bound memory on
// long-lived processes with many keys.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, last := range l.lastRun {
		if now.Sub(last) >= l.interval {
			delete(l.lastRun, k)
			removed++
		}
	}
	return removed
}
