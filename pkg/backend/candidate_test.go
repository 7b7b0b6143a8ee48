package backend

import "testing"

func TestRankOrdersBySortKeyDescending(t *testing.T) {
	cands := []Candidate{
		{Title: "low", SortKey: 420_000},
		{Title: "high", SortKey: 4_000_000},
		{Title: "mid", SortKey: 1_500_000},
	}

	ranked := Rank(cands, "")

	want := []string{"high", "mid", "low"}
	for i, title := range want {
		if ranked[i].Title != title {
			t.Errorf("Position %d: expected %q, got %q", i, title, ranked[i].Title)
		}
	}
}

func TestRankPreferredQualityWinsTies(t *testing.T) {
	cands := []Candidate{
		{Title: "a", Quality: "720 kbps", SortKey: 100},
		{Title: "b", Quality: "1080p", SortKey: 100},
		{Title: "c", Quality: "720 kbps", SortKey: 100},
	}

	ranked := Rank(cands, "1080p")

	if ranked[0].Title != "b" {
		t.Errorf("Expected preferred quality first, got %q", ranked[0].Title)
	}
	// Equal-key non-preferred candidates keep arrival order.
	if ranked[1].Title != "a" || ranked[2].Title != "c" {
		t.Errorf("Expected stable order a,c after preferred, got %q,%q", ranked[1].Title, ranked[2].Title)
	}
}

func TestRankPreferenceNeverReordersAcrossSortKeys(t *testing.T) {
	cands := []Candidate{
		{Title: "preferred-low", Quality: "420 kbps", SortKey: 420_000},
		{Title: "plain-high", Quality: "4 Mbps", SortKey: 4_000_000},
	}

	ranked := Rank(cands, "420 kbps")

	if ranked[0].Title != "plain-high" {
		t.Errorf("SortKey must dominate preference, got %q first", ranked[0].Title)
	}
}

func TestRankEmptyPreferenceIsStable(t *testing.T) {
	cands := []Candidate{
		{Title: "first", Quality: "", SortKey: 7},
		{Title: "second", Quality: "", SortKey: 7},
	}

	ranked := Rank(cands, "")

	if ranked[0].Title != "first" || ranked[1].Title != "second" {
		t.Errorf("Expected arrival order preserved, got %q,%q", ranked[0].Title, ranked[1].Title)
	}
}

func TestDescriptorSupports(t *testing.T) {
	d := Descriptor{
		ID: "test",
		Capabilities: []Capability{
			{Resource: "stream", ItemKinds: []string{"movie", "series"}, IDPrefixes: []string{"tt"}},
			{Resource: "subtitles"},
		},
	}

	cases := []struct {
		resource, kind, id string
		want               bool
	}{
		{"stream", "movie", "tt0111161", true},
		{"stream", "series", "tt0111161:1:5", true},
		{"stream", "movie", "kitsu:1234", false},
		{"stream", "anime", "tt0111161", false},
		{"subtitles", "anything", "any-id", true},
		{"catalog", "movie", "tt0111161", false},
	}

	for _, c := range cases {
		if got := d.Supports(c.resource, c.kind, c.id); got != c.want {
			t.Errorf("Supports(%q, %q, %q) = %v, expected %v", c.resource, c.kind, c.id, got, c.want)
		}
	}
}
