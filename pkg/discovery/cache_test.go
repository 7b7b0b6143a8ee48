package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"streambridge/pkg/logger"
)

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not reached in time")
}

func TestEnsureFetchesInBackground(t *testing.T) {
	logger.Init("ERROR")
	c := NewCache[[]string]()

	fetch := func(ctx context.Context) ([]string, error) {
		return []string{"a", "b"}, nil
	}

	// First call kicks off the fetch and reports not-ready.
	if _, ok := c.Ensure(context.Background(), "items", "k1", fetch); ok {
		t.Error("First Ensure must not report ready")
	}

	waitFor(t, func() bool {
		s, _ := c.StateOf("items")
		return s == Fetched
	})

	// Second call returns the cached payload.
	items, ok := c.Ensure(context.Background(), "items", "k1", fetch)
	if !ok {
		t.Fatal("Expected cached payload after fetch completed")
	}
	if len(items) != 2 || items[0] != "a" {
		t.Errorf("Unexpected payload: %v", items)
	}
}

func TestEnsureStopsAfterMaxAttempts(t *testing.T) {
	logger.Init("ERROR")
	c := NewCache[int]()

	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 0, errors.New("backend down")
	}

	for i := 0; i < MaxAttempts+3; i++ {
		c.Ensure(context.Background(), "n", "k", fetch)
		waitFor(t, func() bool {
			s, _ := c.StateOf("n")
			return s != Fetching
		})
	}

	if got := calls.Load(); got != MaxAttempts {
		t.Errorf("Expected exactly %d fetch attempts, got %d", MaxAttempts, got)
	}
	if _, attempts := c.StateOf("n"); attempts != MaxAttempts {
		t.Errorf("Expected attempt count %d, got %d", MaxAttempts, attempts)
	}
}

func TestEnsureKeyChangeResetsEntry(t *testing.T) {
	logger.Init("ERROR")
	c := NewCache[int]()

	failing := func(ctx context.Context) (int, error) {
		return 0, errors.New("down")
	}
	for i := 0; i < MaxAttempts; i++ {
		c.Ensure(context.Background(), "n", "old", failing)
		waitFor(t, func() bool {
			s, _ := c.StateOf("n")
			return s != Fetching
		})
	}

	// Exhausted under the old key; a new key starts over and succeeds.
	ok := make(chan struct{})
	c.Ensure(context.Background(), "n", "new", func(ctx context.Context) (int, error) {
		defer close(ok)
		return 42, nil
	})
	<-ok
	waitFor(t, func() bool {
		s, _ := c.StateOf("n")
		return s == Fetched
	})

	v, ready := c.Ensure(context.Background(), "n", "new", failing)
	if !ready || v != 42 {
		t.Errorf("Expected cached 42 under new key, got %d ready=%v", v, ready)
	}
}

func TestEnsureSingleFlightFetch(t *testing.T) {
	logger.Init("ERROR")
	c := NewCache[int]()

	var calls atomic.Int32
	release := make(chan struct{})
	slow := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}

	for i := 0; i < 10; i++ {
		c.Ensure(context.Background(), "n", "k", slow)
	}
	close(release)

	waitFor(t, func() bool {
		s, _ := c.StateOf("n")
		return s == Fetched
	})
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected a single in-flight fetch, got %d", got)
	}
}

func TestEnsureStaleResultDiscardedAfterInvalidate(t *testing.T) {
	logger.Init("ERROR")
	c := NewCache[int]()

	release := make(chan struct{})
	c.Ensure(context.Background(), "n", "k", func(ctx context.Context) (int, error) {
		<-release
		return 99, nil
	})

	c.Invalidate("n")
	close(release)

	// Let the stale goroutine finish, then confirm nothing was stored.
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Peek("n"); ok {
		t.Error("Stale fetch result must be discarded after invalidation")
	}
	if s, attempts := c.StateOf("n"); s != Unfetched || attempts != 0 {
		t.Errorf("Expected fresh entry state, got state=%v attempts=%d", s, attempts)
	}
}

func TestEnsureSurvivesCallerCancellation(t *testing.T) {
	logger.Init("ERROR")
	c := NewCache[string]()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	c.Ensure(ctx, "n", "k", func(fctx context.Context) (string, error) {
		close(started)
		select {
		case <-fctx.Done():
			return "", fctx.Err()
		case <-time.After(50 * time.Millisecond):
			return "payload", nil
		}
	})

	<-started
	cancel()

	waitFor(t, func() bool {
		s, _ := c.StateOf("n")
		return s == Fetched
	})
	if v, ok := c.Peek("n"); !ok || v != "payload" {
		t.Errorf("Fetch detached from caller context must complete, got %q ok=%v", v, ok)
	}
}
