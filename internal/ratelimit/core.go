// Package ratelimit implements a fixed-window request counter with an
// optional Redis-backed distributed mode. The local limiter is authoritative
// whenever the distributed backend is unavailable.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter keyed by caller-chosen strings
// (typically "action:userID:ip"). State is process-local; loss on restart is
// acceptable for the local fallback.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Check applies the fixed-window algorithm for key at the given instant.
// A fresh window (no bucket, or the stored window already elapsed) always
// admits the request and starts counting at 1.
func (l *Limiter) Check(key string, limit int, window time.Duration, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !b.resetAt.After(now) {
		resetAt := now.Add(window)
		l.buckets[key] = &bucket{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: limit - 1, ResetAt: resetAt}
	}
	if b.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: b.resetAt}
	}
	b.count++
	return Result{Allowed: true, Remaining: limit - b.count, ResetAt: b.resetAt}
}

// Reset drops all buckets. Intended for test isolation.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.buckets = make(map[string]*bucket)
	l.mu.Unlock()
}

// Prune removes buckets whose window has already elapsed. Run periodically so
// the map does not grow with one-off keys.
func (l *Limiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}
