// Package ratelimit implements a sliding-window request limiter keyed
// by an arbitrary identifier (typically user id + client IP).
//
// The limiter is an explicit component: construct one in main and pass
// it where needed, so tests can build isolated instances instead of
// sharing process-wide state.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows at most limit requests per identifier within a
// sliding window. It keeps a timestamp list per identifier and prunes
// entries older than the window on every check; the prune-then-append
// step runs under a mutex so concurrent requests cannot over-admit.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time // injectable for tests
}

// NewLimiter creates a limiter allowing limit requests per window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records a request for id and reports whether it is within the
// limit. Denied requests are not recorded.
func (l *Limiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.hits[id][:0]
	for _, ts := range l.hits[id] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.hits[id] = kept
		return false
	}

	l.hits[id] = append(kept, now)
	return true
}

// Remaining reports how many requests id may still make in the current
// window.
func (l *Limiter) Remaining(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	active := 0
	for _, ts := range l.hits[id] {
		if ts.After(cutoff) {
			active++
		}
	}
	if active >= l.limit {
		return 0
	}
	return l.limit - active
}
