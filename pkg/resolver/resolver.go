// Package resolver routes playback requests to the backend that produced the
// candidate.
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streambridge/pkg/backend"
	"streambridge/pkg/logger"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Resolution records one successful playback negotiation, kept for
// diagnostics only. Stored URLs are never replayed.
type Resolution struct {
	BackendID  string    `json:"backend_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Registry maps backend ids to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]backend.Adapter
	recent   *lru.Cache[string, Resolution]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	recent, _ := lru.New[string, Resolution](64)
	return &Registry{
		adapters: make(map[string]backend.Adapter),
		recent:   recent,
	}
}

// Register adds an adapter under its descriptor id. A later registration with
// the same id replaces the earlier one.
func (r *Registry) Register(a backend.Adapter) {
	id := a.Describe().ID
	r.mu.Lock()
	r.adapters[id] = a
	r.mu.Unlock()
	logger.Debug("Backend registered", "id", id, "name", a.Name())
}

// Unregister removes the adapter with the given id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.adapters, id)
	r.mu.Unlock()
}

// Lookup returns the adapter registered under id.
func (r *Registry) Lookup(id string) (backend.Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	return a, ok
}

// Adapters returns all registered adapters.
func (r *Registry) Adapters() []backend.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]backend.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Playback resolves the candidate through the backend that produced it.
// Errors from the adapter propagate unchanged; there is no fallback to other
// candidates here, that choice belongs to the caller.
func (r *Registry) Playback(ctx context.Context, c backend.Candidate) (backend.FinalStream, error) {
	adapter, ok := r.Lookup(c.BackendID)
	if !ok {
		return backend.FinalStream{}, fmt.Errorf("%w: unknown backend %q", backend.ErrNoEligibleBackends, c.BackendID)
	}

	stream, err := adapter.Resolve(ctx, c)
	if err != nil {
		return backend.FinalStream{}, err
	}

	r.recent.Add(fmt.Sprintf("%s|%s", c.BackendID, c.Title), Resolution{
		BackendID:  c.BackendID,
		Title:      c.Title,
		URL:        stream.URL,
		ResolvedAt: time.Now(),
	})
	return stream, nil
}

// Recent returns the most recent successful resolutions, newest last.
func (r *Registry) Recent() []Resolution {
	keys := r.recent.Keys()
	out := make([]Resolution, 0, len(keys))
	for _, k := range keys {
		if v, ok := r.recent.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}
