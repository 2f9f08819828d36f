package conversation

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeyedLocksSerializesSameKey(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	ctx := context.Background()

	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "ch")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire a: %v", err)
	}
	defer releaseA()

	// A held lock on "a" must not block "b".
	done := make(chan struct{})
	go func() {
		releaseB, err := locks.Acquire(ctx, "b")
		if err != nil {
			t.Errorf("Acquire b: %v", err)
			return
		}
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on one key blocked another key")
	}
}

func TestKeyedLocksAcquireCancellable(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()

	release, err := locks.Acquire(context.Background(), "ch")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := locks.Acquire(ctx, "ch")
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Errorf("Acquire after cancel = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	// The holder is unaffected and the lock still works.
	release()
	release2, err := locks.Acquire(context.Background(), "ch")
	if err != nil {
		t.Fatalf("Acquire after cancelled waiter: %v", err)
	}
	release2()
}

func TestKeyedLocksPrune(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "idle")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	held, err := locks.Acquire(ctx, "held")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held()

	time.Sleep(5 * time.Millisecond)

	if pruned := locks.Prune(time.Millisecond); pruned != 1 {
		t.Errorf("Prune removed %d entries, want 1 (the idle one)", pruned)
	}
	if locks.Len() != 1 {
		t.Errorf("Len = %d after Prune, want 1", locks.Len())
	}

	// A pruned key can be acquired again.
	again, err := locks.Acquire(ctx, "idle")
	if err != nil {
		t.Fatalf("Acquire after Prune: %v", err)
	}
	again()
}
