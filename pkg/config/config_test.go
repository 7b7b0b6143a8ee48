package config

import (
	"path/filepath"
	"testing"

	"streambridge/pkg/env"
	"streambridge/pkg/logger"
)

func TestApplyEnvOverridesOnlySetKeys(t *testing.T) {
	cfg := &Config{
		Jellyfin: JellyfinConfig{URL: "http://from-file", Username: "file-user", TranscodeCodec: "h264"},
		APIPort:  7010,
	}

	overrides := env.ConfigOverrides{
		JellyfinURL:    "http://from-env",
		TranscodeCodec: "hevc",
		APIPort:        9000,
	}
	ApplyEnvOverrides(cfg, overrides, []string{env.KeyJellyfinURL, env.KeyTranscodeCodec})

	if cfg.Jellyfin.URL != "http://from-env" {
		t.Errorf("Expected env override for URL, got %q", cfg.Jellyfin.URL)
	}
	if cfg.Jellyfin.TranscodeCodec != "hevc" {
		t.Errorf("Expected env override for codec, got %q", cfg.Jellyfin.TranscodeCodec)
	}
	// Not in keys: file values survive.
	if cfg.Jellyfin.Username != "file-user" {
		t.Errorf("Username must keep its file value, got %q", cfg.Jellyfin.Username)
	}
	if cfg.APIPort != 7010 {
		t.Errorf("APIPort must keep its file value, got %d", cfg.APIPort)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	logger.Init("ERROR")
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := &Config{
		Jellyfin: JellyfinConfig{URL: "http://jf.local", Username: "u"},
		Stremio:  StremioConfig{Addons: []string{"https://a.example/manifest.json"}},
		Torbox:   TorboxConfig{APIKey: "key", VideoFilesOnly: true},
		APIPort:  7010,
		LogLevel: "DEBUG",
	}
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	var loaded Config
	if err := loaded.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if loaded.Jellyfin.URL != "http://jf.local" {
		t.Errorf("Jellyfin URL lost: %q", loaded.Jellyfin.URL)
	}
	if len(loaded.Stremio.Addons) != 1 {
		t.Errorf("Addon list lost: %v", loaded.Stremio.Addons)
	}
	if !loaded.Torbox.VideoFilesOnly {
		t.Error("Torbox flag lost")
	}
	if loaded.LoadedPath != path {
		t.Errorf("LoadedPath not recorded: %q", loaded.LoadedPath)
	}
}
