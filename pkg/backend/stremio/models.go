package stremio

import (
	"encoding/json"
	"strings"
)

// apiURL is the Stremio account API.
const apiURL = "https://api.strem.io"

// resultDto wraps api.strem.io responses.
type resultDto[T any] struct {
	Result T `json:"result"`
}

type loginDto struct {
	AuthKey string `json:"authKey"`
}

type addonResultDto struct {
	Addons []addonDto `json:"addons"`
}

type addonDto struct {
	TransportURL string      `json:"transportUrl"`
	Manifest     manifestDto `json:"manifest"`
}

type manifestDto struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Types      []string      `json:"types"`
	Resources  []resourceDto `json:"resources"`
	IDPrefixes []string      `json:"idPrefixes"`
}

// resourceDto is either a plain resource name or an object with its own type
// and id-prefix restrictions.
type resourceDto struct {
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	IDPrefixes []string `json:"idPrefixes"`
}

func (r *resourceDto) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = resourceDto{Name: name}
		return nil
	}

	type plain resourceDto
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*r = resourceDto(obj)
	return nil
}

// isValidResource reports whether the manifest declares the resource for the
// given content type and id. A resource without its own types or idPrefixes
// is unrestricted; a top-level idPrefixes list applies to every resource.
func (m manifestDto) isValidResource(resource, entryType, id string) bool {
	valid := func(r resourceDto) bool {
		if !strings.EqualFold(r.Name, resource) {
			return false
		}
		if r.Types != nil && !containsFold(r.Types, entryType) {
			return false
		}
		if r.IDPrefixes != nil && !hasPrefixFold(id, r.IDPrefixes) {
			return false
		}
		return true
	}

	any := false
	for _, r := range m.Resources {
		if valid(r) {
			any = true
			break
		}
	}
	if !any {
		return false
	}

	if m.IDPrefixes != nil {
		return hasPrefixFold(id, m.IDPrefixes)
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func hasPrefixFold(id string, prefixes []string) bool {
	lower := strings.ToLower(id)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

type streamResultDto struct {
	Streams []streamDto `json:"streams"`
}

// streamDto is one stream offered by an addon: either a direct URL or a
// torrent descriptor.
type streamDto struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Title       string `json:"title"`

	// Torrent
	InfoHash string   `json:"infoHash"`
	FileIdx  *int     `json:"fileIdx"`
	Sources  []string `json:"sources"`

	// Http stream
	URL           string           `json:"url"`
	BehaviorHints *behaviorHintDto `json:"behaviorHints"`
}

type behaviorHintDto struct {
	ProxyHeaders *proxyHeaderDto `json:"proxyHeaders"`
	Filename     string          `json:"filename"`
}

type proxyHeaderDto struct {
	Request map[string]string `json:"request"`
}

// displayTitle renders the stream's name line plus description the way the
// addon intended.
func (s streamDto) displayTitle() string {
	var b strings.Builder
	if s.Name != "" {
		b.WriteString(strings.ReplaceAll(s.Name, "\n", " "))
		b.WriteString("\n")
	}
	if s.Description != "" {
		b.WriteString(s.Description)
	} else {
		b.WriteString(s.Title)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "Video"
	}
	return out
}

type subtitleResultDto struct {
	Subtitles []subtitleDto `json:"subtitles"`
}

type subtitleDto struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

type libraryItemDto struct {
	ID      string          `json:"_id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Removed bool            `json:"removed"`
	CTime   string          `json:"_ctime"`
	State   libraryStateDto `json:"state"`
}

type libraryStateDto struct {
	LastWatched    string `json:"lastWatched"`
	TimesWatched   int    `json:"timesWatched"`
	FlaggedWatched int    `json:"flaggedWatched"`
}
