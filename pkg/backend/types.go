package backend

import (
	"context"
	"encoding/json"
	"strings"
)

// ItemRef identifies a piece of content to enumerate streams for.
// Kind is the content type ("movie", "series", "anime"); ID is the
// backend-facing identifier, including any prefix (e.g. "tt0111161:1:5").
type ItemRef struct {
	Kind string
	ID   string
}

// SubtitleTrack is an external subtitle attached to a candidate.
type SubtitleTrack struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Candidate is one playable variant produced during enumeration. It carries
// either a final DirectURL or an opaque Token that the owning adapter decodes
// during resolution, or both.
type Candidate struct {
	Title     string `json:"title"`
	Quality   string `json:"quality"`  // identifying value matched against the quality preference
	SortKey   int64  `json:"sort_key"` // higher ranks first
	BackendID string `json:"backend_id"`

	DirectURL string          `json:"direct_url,omitempty"`
	Token     json.RawMessage `json:"token,omitempty"` // opaque, owned by the emitting adapter

	Subtitles []SubtitleTrack   `json:"subtitles,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// Playable reports whether the candidate can ever be turned into a stream.
func (c Candidate) Playable() bool {
	return c.DirectURL != "" || len(c.Token) > 0
}

// FinalStream is the result of resolving a candidate: everything a player
// needs to start playback.
type FinalStream struct {
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Subtitles []SubtitleTrack   `json:"subtitles,omitempty"`
}

// Capability declares one resource a backend serves, optionally restricted to
// content types and id prefixes. Empty Types or IDPrefixes means unrestricted.
type Capability struct {
	Resource   string   `json:"resource"`
	ItemKinds  []string `json:"item_kinds,omitempty"`
	IDPrefixes []string `json:"id_prefixes,omitempty"`
}

// Descriptor describes a backend for eligibility filtering and diagnostics.
type Descriptor struct {
	ID           string       `json:"id"`
	Endpoint     string       `json:"endpoint"`
	Capabilities []Capability `json:"capabilities"`
}

// Supports reports whether the backend declares a capability matching the
// given resource, item kind, and id.
func (d Descriptor) Supports(resource, kind, id string) bool {
	for _, cap := range d.Capabilities {
		if cap.Resource != resource {
			continue
		}
		if len(cap.ItemKinds) > 0 && !contains(cap.ItemKinds, kind) {
			continue
		}
		if len(cap.IDPrefixes) > 0 && !hasAnyPrefix(id, cap.IDPrefixes) {
			continue
		}
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasAnyPrefix(id string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// Adapter is the interface every content backend implements.
//
// ListCandidates returns all playable variants for an item; no results is a
// nil slice with a nil error, not an error. Resolve turns one candidate into
// a playable stream and may be called long after enumeration.
type Adapter interface {
	Name() string
	Describe() Descriptor
	ListCandidates(ctx context.Context, item ItemRef) ([]Candidate, error)
	Resolve(ctx context.Context, c Candidate) (FinalStream, error)
}
