// Package prefs is a small persisted key-value store for playback preferences.
// Backends read it at enumeration time, so changed values take effect on the
// next stream listing without a restart.
package prefs

import (
	"encoding/json"
	"os"
	"sync"

	"streambridge/pkg/logger"
)

// Well-known preference keys
const (
	KeyQuality       = "preferred_quality"
	KeyAudioLang     = "preferred_audio_lang"
	KeySubtitleLang  = "preferred_sub_lang"
	KeyLibrarySort   = "library_sort"
	KeySubtitlesOn   = "subtitles_enabled"
	KeyBurnSubtitles = "burn_in_subtitles"
)

// DefaultQuality matches the highest-ranked candidate of a direct-play backend.
const DefaultQuality = "Source"

var defaults = map[string]string{
	KeyQuality:       DefaultQuality,
	KeyAudioLang:     "eng",
	KeySubtitleLang:  "eng",
	KeyLibrarySort:   "LastWatched",
	KeySubtitlesOn:   "true",
	KeyBurnSubtitles: "false",
}

// Store is a mutex-guarded preference map with optional persistence.
type Store struct {
	mu        sync.RWMutex
	values    map[string]string
	path      string
	listeners []func(key, value string)
}

// NewStore returns a store seeded with defaults. path may be empty for an
// in-memory store (tests).
func NewStore(path string) *Store {
	s := &Store{
		values: make(map[string]string, len(defaults)),
		path:   path,
	}
	for k, v := range defaults {
		s.values[k] = v
	}
	if path != "" {
		s.load()
	}
	return s
}

// Get returns the value for key, falling back to the built-in default.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return defaults[key]
}

// GetBool interprets the value for key as a boolean.
func (s *Store) GetBool(key string) bool {
	v := s.Get(key)
	return v == "true" || v == "1"
}

// Set stores key=value, persists, and notifies subscribers.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	if s.values[key] == value {
		s.mu.Unlock()
		return
	}
	s.values[key] = value
	listeners := make([]func(string, string), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.save()
	for _, fn := range listeners {
		fn(key, value)
	}
}

// Subscribe registers fn to be called after every change. Used to key
// discovery caches off preference values.
func (s *Store) Subscribe(fn func(key, value string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of all current values.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

func (s *Store) load() {
	file, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to load preferences", "path", s.path, "err", err)
		}
		return
	}
	defer file.Close()

	var saved map[string]string
	if err := json.NewDecoder(file).Decode(&saved); err != nil {
		logger.Warn("Failed to parse preferences, using defaults", "path", s.path, "err", err)
		return
	}
	s.mu.Lock()
	for k, v := range saved {
		s.values[k] = v
	}
	s.mu.Unlock()
}

func (s *Store) save() {
	if s.path == "" {
		return
	}
	s.mu.RLock()
	cp := make(map[string]string, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	s.mu.RUnlock()

	file, err := os.Create(s.path)
	if err != nil {
		logger.Warn("Failed to save preferences", "path", s.path, "err", err)
		return
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cp); err != nil {
		logger.Warn("Failed to write preferences", "path", s.path, "err", err)
	}
}
