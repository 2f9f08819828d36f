// Package ratelimit implements sliding-window admission control keyed by
// (identity, resource). Each bucket tracks timestamps of recent events
// within its trailing window; expired entries are purged lazily at check
// time, never by a background sweep.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a rate limit check. A denial is a normal
// decision value, not an error.
type Decision struct {
	// Allowed reports whether the call was admitted and recorded.
	Allowed bool

	// Remaining is the number of further calls the window can admit.
	// Zero on denial.
	Remaining int

	// RetryAfter is how long the caller must wait before a call can
	// succeed. Zero when allowed; otherwise strictly within (0, window].
	RetryAfter time.Duration
}

type key struct {
	identity string
	resource string
}

type bucket struct {
	mu       sync.Mutex
	events   []time.Time
	lastSeen time.Time
}

// Limiter is a sliding-window rate limiter. Buckets are created lazily per
// (identity, resource); buckets for different keys never block each other.
type Limiter struct {
	mu      sync.Mutex // guards the buckets map only
	buckets map[key]*bucket
	now     func() time.Time
}

// New creates a Limiter using the wall clock.
func New() *Limiter {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Limiter with an injected clock for deterministic
// tests. A nil now falls back to time.Now.
func NewWithClock(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		buckets: make(map[key]*bucket),
		now:     now,
	}
}

// Check admits or denies one call for the given identity and resource.
//
// The check is record-then-check: expired timestamps are purged, and if the
// remaining count is below limit the call is recorded and allowed in the
// same atomic step. Callers must invoke Check exactly once per attempted
// action; probing separately from committing double-counts.
//
// A limit of zero (or negative) always denies. An empty bucket always
// allows the first call.
func (l *Limiter) Check(identity, resource string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: window}
	}

	b := l.getOrCreate(key{identity: identity, resource: resource})

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.lastSeen = now
	b.purge(now.Add(-window))

	if len(b.events) >= limit {
		// The oldest surviving event is strictly inside the window, so
		// retryAfter lands in (0, window].
		retry := window - now.Sub(b.events[0])
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	b.events = append(b.events, now)
	return Decision{Allowed: true, Remaining: limit - len(b.events)}
}

// Prune removes buckets that have been idle longer than maxIdle and returns
// how many were removed. Safe to call at any time: eviction only discards
// state that lazy purging would discard anyway.
func (l *Limiter) Prune(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for k, b := range l.buckets {
		b.mu.Lock()
		idle := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if idle {
			delete(l.buckets, k)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) getOrCreate(k key) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{}
		l.buckets[k] = b
	}
	return b
}

// purge removes events at or before cutoff. Events are chronologically
// ordered, so a single forward scan suffices.
func (b *bucket) purge(cutoff time.Time) {
	i := 0
	for i < len(b.events) && !b.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
