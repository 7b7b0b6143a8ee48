package stremio

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"streambridge/pkg/backend"
	"streambridge/pkg/logger"
	"streambridge/pkg/parser"

	"github.com/samber/lo"
)

// AddonAdapter exposes one Stremio addon as a backend. Its candidates are
// final at enumeration time: the direct or magnet URL is already known, so
// Resolve is a passthrough.
type AddonAdapter struct {
	addon   *Addon
	manager *Manager
}

// Ensure AddonAdapter implements backend.Adapter at compile time.
var _ backend.Adapter = (*AddonAdapter)(nil)

// Adapters returns one adapter per installed addon that serves streams.
// Returns false while the addon collection is still being discovered.
func (m *Manager) Adapters(ctx context.Context) ([]backend.Adapter, bool) {
	addons, ok := m.Addons(ctx)
	if !ok {
		return nil, false
	}

	streaming := lo.Filter(addons, func(a *Addon, _ int) bool {
		for _, r := range a.Manifest.Resources {
			if strings.EqualFold(r.Name, "stream") {
				return true
			}
		}
		return false
	})

	return lo.Map(streaming, func(a *Addon, _ int) backend.Adapter {
		return &AddonAdapter{addon: a, manager: m}
	}), true
}

// BackendIDFor returns the backend id adapters of this addon use.
func BackendIDFor(a *Addon) string {
	id := a.Manifest.ID
	if id == "" {
		if u, err := url.Parse(a.TransportURL); err == nil {
			id = u.Host
		}
	}
	return "stremio/" + id
}

// Name returns the addon's display name.
func (ad *AddonAdapter) Name() string {
	if ad.addon.Manifest.Name != "" {
		return ad.addon.Manifest.Name
	}
	return ad.addon.TransportURL
}

// Describe maps the addon manifest onto a backend descriptor. A resource
// without its own restrictions inherits the manifest-level types and id
// prefixes.
func (ad *AddonAdapter) Describe() backend.Descriptor {
	m := ad.addon.Manifest

	caps := make([]backend.Capability, 0, len(m.Resources))
	for _, r := range m.Resources {
		cap := backend.Capability{
			Resource:   strings.ToLower(r.Name),
			ItemKinds:  r.Types,
			IDPrefixes: r.IDPrefixes,
		}
		if cap.ItemKinds == nil {
			cap.ItemKinds = m.Types
		}
		if cap.IDPrefixes == nil {
			cap.IDPrefixes = m.IDPrefixes
		}
		caps = append(caps, cap)
	}

	return backend.Descriptor{
		ID:           BackendIDFor(ad.addon),
		Endpoint:     ad.addon.TransportURL,
		Capabilities: caps,
	}
}

// ListCandidates fetches the addon's streams for the item. Torrent streams
// become streaming-server URLs when one is configured, magnet links
// otherwise.
func (ad *AddonAdapter) ListCandidates(ctx context.Context, item backend.ItemRef) ([]backend.Candidate, error) {
	// The descriptor approximates the manifest rule; re-check exactly so a
	// candidate list is never requested from an addon that cannot serve it.
	if !ad.addon.Manifest.isValidResource("stream", item.Kind, item.ID) {
		return nil, nil
	}

	u := fmt.Sprintf("%s/stream/%s/%s.json", ad.addon.transportBase(), url.PathEscape(item.Kind), url.PathEscape(item.ID))

	var result streamResultDto
	if err := ad.manager.getJSON(ctx, u, &result); err != nil {
		return nil, fmt.Errorf("addon %s streams: %w", ad.Name(), err)
	}

	subtitles := ad.manager.SubtitleTracks(ctx, item.Kind, item.ID)
	backendID := BackendIDFor(ad.addon)

	var candidates []backend.Candidate
	for _, s := range result.Streams {
		streamURL, headers := ad.streamURL(s)
		if streamURL == "" {
			logger.Debug("Addon stream without url or infoHash", "addon", ad.Name())
			continue
		}

		title := s.displayTitle()
		parsed := parser.ParseReleaseTitle(title)
		candidates = append(candidates, backend.Candidate{
			Title:     title,
			Quality:   parsed.ResolutionGroup(),
			SortKey:   parsed.Score(),
			BackendID: backendID,
			DirectURL: streamURL,
			Subtitles: subtitles,
			Headers:   headers,
		})
	}
	return candidates, nil
}

// streamURL turns a stream DTO into its playable URL. Returns "" when the
// stream carries neither a url nor an infoHash.
func (ad *AddonAdapter) streamURL(s streamDto) (string, map[string]string) {
	var headers map[string]string
	if s.BehaviorHints != nil && s.BehaviorHints.ProxyHeaders != nil && len(s.BehaviorHints.ProxyHeaders.Request) > 0 {
		headers = s.BehaviorHints.ProxyHeaders.Request
	}

	if s.URL != "" {
		return s.URL, headers
	}
	if s.InfoHash == "" {
		return "", nil
	}

	if server := ad.manager.cfg.ServerURL; server != "" {
		fileIdx := -1
		if s.FileIdx != nil {
			fileIdx = *s.FileIdx
		}
		u := fmt.Sprintf("%s/%s/%d", strings.TrimRight(server, "/"), s.InfoHash, fileIdx)
		if len(s.Sources) > 0 {
			q := url.Values{}
			for _, tracker := range s.Sources {
				q.Add("tr", tracker)
			}
			u += "?" + q.Encode()
		}
		return u, nil
	}

	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(s.InfoHash)
	for _, tracker := range s.Sources {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tracker))
	}
	if s.FileIdx != nil && *s.FileIdx != -1 {
		b.WriteString("&index=")
		b.WriteString(strconv.Itoa(*s.FileIdx))
	}
	return b.String(), nil
}

// Resolve returns the candidate's already-final URL.
func (ad *AddonAdapter) Resolve(ctx context.Context, c backend.Candidate) (backend.FinalStream, error) {
	if c.DirectURL == "" {
		return backend.FinalStream{}, fmt.Errorf("%w: stremio candidate without url", backend.ErrBackendRejected)
	}
	return backend.FinalStream{
		URL:       c.DirectURL,
		Headers:   c.Headers,
		Subtitles: c.Subtitles,
	}, nil
}
