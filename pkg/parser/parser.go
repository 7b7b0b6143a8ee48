// Package parser extracts quality metadata from release titles so torrent and
// debrid candidates can be ranked against each other.
package parser

import (
	"strings"

	"github.com/MunifTanjim/go-ptt"
)

// ParsedRelease contains parsed metadata from a release title
// Matches PTT parser output structure
type ParsedRelease struct {
	Title      string
	Resolution string
	Quality    string
	Codec      string
	Audio      []string
	HDR        []string
	Group      string
	Languages  []string
	Repack     bool
	Proper     bool
	ThreeD     string
	BitDepth   string
}

// ParseReleaseTitle parses a release title using go-ptt
func ParseReleaseTitle(title string) *ParsedRelease {
	info := ptt.Parse(title)

	return &ParsedRelease{
		Title:      info.Title,
		Resolution: info.Resolution,
		Quality:    info.Quality,
		Codec:      info.Codec,
		Audio:      info.Audio,
		HDR:        info.HDR,
		Group:      info.Group,
		Languages:  info.Languages,
		Repack:     info.Repack,
		Proper:     info.Proper,
		ThreeD:     info.ThreeD,
		BitDepth:   info.BitDepth,
	}
}

// ResolutionGroup returns the resolution group (4k, 1080p, 720p, sd) from parsed metadata.
func (p *ParsedRelease) ResolutionGroup() string {
	if p == nil {
		return "sd"
	}
	res := strings.ToLower(p.Resolution)
	if strings.Contains(res, "2160") || strings.Contains(res, "4k") {
		return "4k"
	}
	if strings.Contains(res, "1080") {
		return "1080p"
	}
	if strings.Contains(res, "720") {
		return "720p"
	}
	return "sd"
}

// Score computes a ranking key from the parsed metadata. Resolution dominates,
// source quality and visual tags break ties within a resolution group.
func (p *ParsedRelease) Score() int64 {
	if p == nil {
		return 1000
	}
	var score int64
	switch p.ResolutionGroup() {
	case "4k":
		score = 4000
	case "1080p":
		score = 3000
	case "720p":
		score = 2000
	default:
		score = 1000
	}

	quality := strings.ToLower(p.Quality)
	switch {
	case strings.Contains(quality, "remux"):
		score += 500
	case strings.Contains(quality, "bluray"), strings.Contains(quality, "blu-ray"):
		score += 400
	case strings.Contains(quality, "web-dl"), strings.Contains(quality, "webdl"):
		score += 300
	case strings.Contains(quality, "webrip"), strings.Contains(quality, "web"):
		score += 200
	}

	if len(p.HDR) > 0 || p.ThreeD != "" {
		score += 100
	}
	return score
}

// ScoreTitle is a convenience for callers that only have the raw title.
func ScoreTitle(title string) int64 {
	return ParseReleaseTitle(title).Score()
}
