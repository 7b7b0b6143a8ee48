package stremio

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"streambridge/pkg/backend"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
)

// LibraryItem is one entry of the account library.
type LibraryItem struct {
	ID           string
	Name         string
	Type         string
	CTime        string
	LastWatched  string
	TimesWatched int
	Watched      bool
}

// Library sort modes, after stremio-core.
const (
	SortLastWatched = "LastWatched"
	SortAZ          = "AZ"
	SortZA          = "ZA"
	SortMostWatched = "MostWatched"
	SortWatched     = "Watched"
	SortNotWatched  = "NotWatched"
)

// Library returns the account library snapshot through the discovery cache,
// keyed by auth key. Requires a logged-in account.
func (m *Manager) Library(ctx context.Context) ([]LibraryItem, bool) {
	authKey := m.AuthKey()
	if authKey == "" {
		return nil, false
	}

	return m.libCache.Ensure(ctx, "library", authKey, func(ctx context.Context) ([]LibraryItem, error) {
		payload := map[string]any{
			"all":        true,
			"authKey":    authKey,
			"collection": "libraryItem",
			"ids":        []string{},
		}

		var result resultDto[[]libraryItemDto]
		if err := m.postJSON(ctx, apiURL+"/api/datastoreGet", payload, &result); err != nil {
			return nil, fmt.Errorf("library snapshot: %w", err)
		}

		kept := lo.Filter(result.Result, func(it libraryItemDto, _ int) bool {
			return !it.Removed
		})
		return lo.Map(kept, func(it libraryItemDto, _ int) LibraryItem {
			return LibraryItem{
				ID:           it.ID,
				Name:         it.Name,
				Type:         it.Type,
				CTime:        it.CTime,
				LastWatched:  it.State.LastWatched,
				TimesWatched: it.State.TimesWatched,
				Watched:      it.State.FlaggedWatched > 0 || it.State.TimesWatched > 0,
			}
		}), nil
	})
}

// InvalidateLibrary forces a refetch of the library snapshot (e.g. after
// logout).
func (m *Manager) InvalidateLibrary() {
	m.libCache.Invalidate("library")
}

// SearchLibrary filters the snapshot by type and fuzzy name match, then sorts
// with the requested mode. itemType "all" or "" skips type filtering.
func (m *Manager) SearchLibrary(ctx context.Context, query, itemType, sortMode string) ([]LibraryItem, bool) {
	items, ok := m.Library(ctx)
	if !ok {
		return nil, false
	}

	filtered := lo.Filter(items, func(it LibraryItem, _ int) bool {
		if itemType != "" && itemType != "all" && !strings.EqualFold(it.Type, itemType) {
			return false
		}
		return query == "" || fuzzy.MatchNormalizedFold(query, it.Name)
	})

	sortLibrary(filtered, sortMode)
	return filtered, true
}

func sortLibrary(items []LibraryItem, mode string) {
	switch mode {
	case SortAZ:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
		})
	case SortZA:
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Name) > strings.ToLower(items[j].Name)
		})
	case SortMostWatched:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].TimesWatched > items[j].TimesWatched
		})
	case SortWatched:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Watched != items[j].Watched {
				return items[i].Watched
			}
			if items[i].LastWatched != items[j].LastWatched {
				return items[i].LastWatched > items[j].LastWatched
			}
			return items[i].CTime > items[j].CTime
		})
	case SortNotWatched:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Watched != items[j].Watched {
				return !items[i].Watched
			}
			if items[i].LastWatched != items[j].LastWatched {
				return items[i].LastWatched < items[j].LastWatched
			}
			return items[i].CTime < items[j].CTime
		})
	default: // SortLastWatched
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].LastWatched > items[j].LastWatched
		})
	}
}

// ItemRefFor converts a library item into the aggregator's item reference.
func ItemRefFor(it LibraryItem) backend.ItemRef {
	return backend.ItemRef{Kind: it.Type, ID: it.ID}
}
