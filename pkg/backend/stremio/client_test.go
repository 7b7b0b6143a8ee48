package stremio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"streambridge/pkg/backend"
	"streambridge/pkg/config"
	"streambridge/pkg/logger"
)

func intPtr(v int) *int { return &v }

func magnetAdapter(serverURL string) *AddonAdapter {
	return &AddonAdapter{
		addon:   &Addon{TransportURL: "https://addon.example/manifest.json"},
		manager: NewManager(config.StremioConfig{ServerURL: serverURL}),
	}
}

func TestMagnetSynthesis(t *testing.T) {
	ad := magnetAdapter("")

	u, _ := ad.streamURL(streamDto{
		InfoHash: "aabbccddeeff00112233445566778899aabbccdd",
		FileIdx:  intPtr(3),
		Sources:  []string{"udp://tracker.example:1337/announce", "http://t.example/a?b=c"},
	})

	if !strings.HasPrefix(u, "magnet:?xt=urn:btih:aabbccddeeff00112233445566778899aabbccdd") {
		t.Errorf("Unexpected magnet prefix: %q", u)
	}
	if !strings.Contains(u, "&tr=udp%3A%2F%2Ftracker.example%3A1337%2Fannounce") {
		t.Errorf("Tracker not percent-encoded: %q", u)
	}
	if !strings.Contains(u, "&tr=http%3A%2F%2Ft.example%2Fa%3Fb%3Dc") {
		t.Errorf("Second tracker missing or badly encoded: %q", u)
	}
	if !strings.HasSuffix(u, "&index=3") {
		t.Errorf("Expected file index suffix, got %q", u)
	}
}

func TestMagnetIndexOmitted(t *testing.T) {
	ad := magnetAdapter("")

	// Unset file index
	u, _ := ad.streamURL(streamDto{InfoHash: "ff00", Sources: []string{"udp://t:1/a"}})
	if strings.Contains(u, "index=") {
		t.Errorf("Index must be omitted when fileIdx is unset: %q", u)
	}

	// Explicit -1
	u, _ = ad.streamURL(streamDto{InfoHash: "ff00", FileIdx: intPtr(-1)})
	if strings.Contains(u, "index=") {
		t.Errorf("Index must be omitted when fileIdx is -1: %q", u)
	}
}

func TestStreamingServerURL(t *testing.T) {
	ad := magnetAdapter("http://127.0.0.1:11470/")

	u, _ := ad.streamURL(streamDto{
		InfoHash: "ff00",
		FileIdx:  intPtr(2),
		Sources:  []string{"udp://t:1/a"},
	})
	if !strings.HasPrefix(u, "http://127.0.0.1:11470/ff00/2?") {
		t.Errorf("Expected streaming server URL, got %q", u)
	}
	if !strings.Contains(u, "tr=udp%3A%2F%2Ft%3A1%2Fa") {
		t.Errorf("Expected encoded tracker param, got %q", u)
	}

	// Missing file index defaults to -1 in the path.
	u, _ = ad.streamURL(streamDto{InfoHash: "ff00"})
	if u != "http://127.0.0.1:11470/ff00/-1" {
		t.Errorf("Expected /-1 path, got %q", u)
	}
}

func TestDirectURLWithProxyHeaders(t *testing.T) {
	ad := magnetAdapter("")

	u, headers := ad.streamURL(streamDto{
		URL: "https://cdn.example/video.mkv",
		BehaviorHints: &behaviorHintDto{
			ProxyHeaders: &proxyHeaderDto{Request: map[string]string{"Authorization": "Bearer x"}},
		},
	})
	if u != "https://cdn.example/video.mkv" {
		t.Errorf("Expected direct URL passthrough, got %q", u)
	}
	if headers["Authorization"] != "Bearer x" {
		t.Errorf("Expected proxy request headers, got %v", headers)
	}
}

func TestIsValidResource(t *testing.T) {
	manifest := manifestDto{
		ID:    "org.example",
		Types: []string{"movie", "series"},
		Resources: []resourceDto{
			{Name: "stream", Types: []string{"movie"}, IDPrefixes: []string{"tt"}},
			{Name: "subtitles"},
		},
	}

	cases := []struct {
		resource, entryType, id string
		want                    bool
	}{
		{"stream", "movie", "tt0111161", true},
		{"stream", "Movie", "TT0111161", true}, // case-insensitive
		{"stream", "series", "tt0111161", false},
		{"stream", "movie", "kitsu:42", false},
		{"subtitles", "anything", "kitsu:42", true}, // unrestricted resource
		{"catalog", "movie", "tt0111161", false},
	}
	for _, c := range cases {
		if got := manifest.isValidResource(c.resource, c.entryType, c.id); got != c.want {
			t.Errorf("isValidResource(%q, %q, %q) = %v, expected %v", c.resource, c.entryType, c.id, got, c.want)
		}
	}

	// A top-level idPrefixes list applies even to unrestricted resources.
	manifest.IDPrefixes = []string{"tt"}
	if manifest.isValidResource("subtitles", "movie", "kitsu:42") {
		t.Error("Top-level idPrefixes must restrict every resource")
	}
	if !manifest.isValidResource("subtitles", "movie", "tt1") {
		t.Error("Matching top-level prefix must pass")
	}
}

func TestResourceStringOrObject(t *testing.T) {
	var m manifestDto
	data := `{
		"id": "org.example",
		"resources": ["catalog", {"name": "stream", "types": ["movie"], "idPrefixes": ["tt"]}]
	}`
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if len(m.Resources) != 2 {
		t.Fatalf("Expected 2 resources, got %d", len(m.Resources))
	}
	if m.Resources[0].Name != "catalog" || m.Resources[0].Types != nil {
		t.Errorf("String resource parsed wrong: %+v", m.Resources[0])
	}
	if m.Resources[1].Name != "stream" || len(m.Resources[1].Types) != 1 {
		t.Errorf("Object resource parsed wrong: %+v", m.Resources[1])
	}
}

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		in   streamDto
		want string
	}{
		{streamDto{Name: "Torrentio\n4k", Description: "Movie.2024.2160p"}, "Torrentio 4k\nMovie.2024.2160p"},
		{streamDto{Name: "Addon", Title: "legacy title"}, "Addon\nlegacy title"},
		{streamDto{}, "Video"},
	}
	for _, c := range cases {
		if got := c.in.displayTitle(); got != c.want {
			t.Errorf("displayTitle(%+v) = %q, expected %q", c.in, got, c.want)
		}
	}
}

func TestListCandidatesFromAddon(t *testing.T) {
	logger.Init("ERROR")

	mux := http.NewServeMux()
	mux.HandleFunc("/stream/movie/tt0111161.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"streams": [
			{"name": "Addon 1080p", "description": "Movie.1994.1080p.BluRay.x264", "url": "https://cdn.example/a.mkv"},
			{"name": "Addon 720p", "description": "Movie.1994.720p.WEB-DL", "infoHash": "ff00", "fileIdx": 1, "sources": ["udp://t:1/a"]},
			{"name": "broken"}
		]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	manifestURL := server.URL + "/manifest.json"
	manager := NewManager(config.StremioConfig{Addons: []string{manifestURL}})
	ad := &AddonAdapter{
		addon: &Addon{
			TransportURL: manifestURL,
			Manifest: manifestDto{
				ID:        "org.test",
				Name:      "Test Addon",
				Resources: []resourceDto{{Name: "stream"}},
			},
		},
		manager: manager,
	}

	cands, err := ad.ListCandidates(context.Background(), backend.ItemRef{Kind: "movie", ID: "tt0111161"})
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}

	// The url-less, hash-less stream is dropped.
	if len(cands) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(cands))
	}

	if cands[0].DirectURL != "https://cdn.example/a.mkv" {
		t.Errorf("Unexpected direct url %q", cands[0].DirectURL)
	}
	if cands[0].Quality != "1080p" {
		t.Errorf("Expected quality 1080p, got %q", cands[0].Quality)
	}
	if cands[0].BackendID != "stremio/org.test" {
		t.Errorf("Unexpected backend id %q", cands[0].BackendID)
	}
	if !strings.HasPrefix(cands[1].DirectURL, "magnet:?xt=urn:btih:ff00") {
		t.Errorf("Expected magnet candidate, got %q", cands[1].DirectURL)
	}
	if cands[0].SortKey <= cands[1].SortKey {
		t.Errorf("1080p BluRay must outscore 720p WEB-DL: %d vs %d", cands[0].SortKey, cands[1].SortKey)
	}
}

func TestListCandidatesSkipsInvalidResource(t *testing.T) {
	logger.Init("ERROR")

	manager := NewManager(config.StremioConfig{})
	ad := &AddonAdapter{
		addon: &Addon{
			TransportURL: "https://addon.example/manifest.json",
			Manifest: manifestDto{
				ID:        "org.anime",
				Resources: []resourceDto{{Name: "stream", IDPrefixes: []string{"kitsu:"}}},
			},
		},
		manager: manager,
	}

	cands, err := ad.ListCandidates(context.Background(), backend.ItemRef{Kind: "movie", ID: "tt0111161"})
	if err != nil {
		t.Fatalf("Expected silent skip, got error: %v", err)
	}
	if cands != nil {
		t.Errorf("Expected no candidates for unmatched prefix, got %d", len(cands))
	}
}

func TestTransportBase(t *testing.T) {
	a := &Addon{TransportURL: "https://addon.example/path/manifest.json"}
	if got := a.transportBase(); got != "https://addon.example/path" {
		t.Errorf("Unexpected transport base %q", got)
	}
}
