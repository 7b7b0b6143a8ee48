package backend

import (
	"context"
	"fmt"
	"sync"

	"streambridge/pkg/logger"
)

// QualityPref supplies the preferred quality at aggregation time so ranking
// follows preference changes without rebuilding the aggregator.
type QualityPref interface {
	Get(key string) string
}

// Aggregator fans one enumeration request out to every eligible backend and
// merges the results into a single ranked list.
type Aggregator struct {
	Adapters []Adapter
	Prefs    QualityPref
	PrefKey  string
}

// NewAggregator creates an aggregator over the given adapters. prefs may be
// nil, in which case no quality preference is applied.
func NewAggregator(prefs QualityPref, prefKey string, adapters ...Adapter) *Aggregator {
	return &Aggregator{
		Adapters: adapters,
		Prefs:    prefs,
		PrefKey:  prefKey,
	}
}

// Eligible returns the adapters whose descriptor supports the stream resource
// for the given item.
func (a *Aggregator) Eligible(item ItemRef) []Adapter {
	var out []Adapter
	for _, ad := range a.Adapters {
		if ad.Describe().Supports("stream", item.Kind, item.ID) {
			out = append(out, ad)
		}
	}
	return out
}

// FetchAll enumerates candidates from every eligible backend in parallel.
// A failing backend is logged and skipped; its failure never hides results
// from the others. ErrNoEligibleBackends is returned when capability
// filtering leaves nothing to query, ErrAllBackendsFailed when every queried
// backend failed.
func (a *Aggregator) FetchAll(ctx context.Context, item ItemRef) ([]Candidate, error) {
	eligible := a.Eligible(item)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: kind=%s id=%s", ErrNoEligibleBackends, item.Kind, item.ID)
	}

	type result struct {
		cands []Candidate
		err   error
	}
	resultsChan := make(chan result, len(eligible))
	var wg sync.WaitGroup

	for _, ad := range eligible {
		wg.Add(1)
		go func(adapter Adapter) {
			defer wg.Done()

			cands, err := adapter.ListCandidates(ctx, item)
			if err != nil {
				logger.Warn("Backend enumeration failed", "backend", adapter.Name(), "err", err)
				resultsChan <- result{err: err}
				return
			}
			resultsChan <- result{cands: cands}
		}(ad)
	}

	wg.Wait()
	close(resultsChan)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var all []Candidate
	failures := 0
	for r := range resultsChan {
		if r.err != nil {
			failures++
			continue
		}
		for _, c := range r.cands {
			if !c.Playable() {
				logger.Debug("Dropping unplayable candidate", "backend", c.BackendID, "title", c.Title)
				continue
			}
			all = append(all, c)
		}
	}

	if failures == len(eligible) {
		return nil, fmt.Errorf("%w: %d backends", ErrAllBackendsFailed, failures)
	}

	preferred := ""
	if a.Prefs != nil {
		preferred = a.Prefs.Get(a.PrefKey)
	}
	return Rank(all, preferred), nil
}
