package conversation

import (
	"context"
	"sync"
	"time"
)

type lockEntry struct {
	sem      chan struct{}
	refs     int
	lastUsed time.Time
}

// keyedLocks serializes operations per channel. Entries are created lazily
// and evicted once idle with no holders or waiters. The semaphore form (a
// buffered channel of one) lets waiters abandon on context cancellation —
// a cancelled caller stops waiting, but a holder is never interrupted.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	now     func() time.Time
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		entries: make(map[string]*lockEntry),
		now:     time.Now,
	}
}

// Acquire blocks until the key's lock is held or ctx is cancelled. On
// success it returns a release function that must be called exactly once.
func (k *keyedLocks) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			k.release(e)
		}, nil
	case <-ctx.Done():
		k.release(e)
		return nil, ctx.Err()
	}
}

func (k *keyedLocks) release(e *lockEntry) {
	k.mu.Lock()
	e.refs--
	e.lastUsed = k.now()
	k.mu.Unlock()
}

// Prune removes lock entries idle longer than maxIdle with no holders or
// waiters, and returns how many were removed.
func (k *keyedLocks) Prune(maxIdle time.Duration) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-maxIdle)

	pruned := 0
	for key, e := range k.entries {
		if e.refs == 0 && e.lastUsed.Before(cutoff) {
			delete(k.entries, key)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live lock entries.
func (k *keyedLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
