// Package discovery caches slow backend catalog fetches (addon manifests,
// library snapshots, transfer lists) behind a non-blocking advisory API.
package discovery

import (
	"context"
	"sync"

	"streambridge/pkg/logger"
)

// State of a cache entry.
type State int

const (
	Unfetched State = iota
	Fetching
	Fetched
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Fetched:
		return "fetched"
	default:
		return "unfetched"
	}
}

// MaxAttempts bounds how many failed fetches an entry tolerates before it
// stops retrying. A key change resets the count.
const MaxAttempts = 3

type entry[T any] struct {
	state    State
	key      string
	attempts int
	payload  T
}

// Cache holds named entries of T, each fetched at most once at a time and
// invalidated when its cache key changes.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
}

// NewCache creates an empty discovery cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]*entry[T])}
}

// FetchFunc loads the payload for an entry. It runs on a background goroutine
// detached from the caller's cancellation.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Ensure returns the cached payload for name when it is fresh under key, and
// otherwise arranges (at most) one background fetch. It never blocks: while a
// fetch is in flight or the entry is exhausted, the zero value and false are
// returned and the caller renders an empty state.
//
// A key different from the stored one discards the entry wholesale, including
// the attempt count.
func (c *Cache[T]) Ensure(ctx context.Context, name, key string, fetch FetchFunc[T]) (T, bool) {
	var zero T
	c.mu.Lock()

	e, ok := c.entries[name]
	if !ok || e.key != key {
		e = &entry[T]{key: key}
		c.entries[name] = e
	}

	switch {
	case e.state == Fetched:
		payload := e.payload
		c.mu.Unlock()
		return payload, true
	case e.state == Fetching:
		c.mu.Unlock()
		return zero, false
	case e.attempts >= MaxAttempts:
		c.mu.Unlock()
		return zero, false
	}

	e.state = Fetching
	e.attempts++
	attempt := e.attempts
	c.mu.Unlock()

	go func() {
		payload, err := fetch(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		cur, ok := c.entries[name]
		if !ok || cur != e || cur.key != key {
			// Entry was invalidated while we were fetching; discard.
			return
		}
		if err != nil {
			logger.Warn("Discovery fetch failed", "entry", name, "attempt", attempt, "err", err)
			cur.state = Unfetched
			return
		}
		cur.payload = payload
		cur.state = Fetched
		logger.Debug("Discovery fetch complete", "entry", name, "attempt", attempt)
	}()

	return zero, false
}

// Peek returns the payload for name if it is fetched, without triggering a
// fetch or checking the key.
func (c *Cache[T]) Peek(name string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if e, ok := c.entries[name]; ok && e.state == Fetched {
		return e.payload, true
	}
	return zero, false
}

// StateOf returns the current state and attempt count of name.
func (c *Cache[T]) StateOf(name string) (State, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		return e.state, e.attempts
	}
	return Unfetched, 0
}

// Invalidate discards the entry for name. The next Ensure starts fresh.
func (c *Cache[T]) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}

// InvalidateAll discards every entry.
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry[T])
	c.mu.Unlock()
}
