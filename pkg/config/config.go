package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"streambridge/pkg/env"
	"streambridge/pkg/logger"
	"streambridge/pkg/paths"
)

// JellyfinConfig holds the connection settings for a Jellyfin server.
type JellyfinConfig struct {
	URL      string `json:"jellyfin_url"`
	Username string `json:"jellyfin_username"`
	Password string `json:"jellyfin_password"`
	// Video codec requested in the transcoding device profile (e.g. "h264", "hevc")
	TranscodeCodec string `json:"transcode_codec"`
}

// StremioConfig holds the addon list or account settings for Stremio.
type StremioConfig struct {
	// Manifest URLs fetched directly. When empty and AuthKey (or Email/Password)
	// is set, the addon collection of the account is used instead.
	Addons    []string `json:"stremio_addons"`
	Email     string   `json:"stremio_email"`
	Password  string   `json:"stremio_password"`
	AuthKey   string   `json:"stremio_auth_key"`
	ServerURL string   `json:"stremio_server_url"` // local streaming server, empty = magnet links
}

// TorboxConfig holds the Torbox API settings.
type TorboxConfig struct {
	APIKey string `json:"torbox_api_key"`
	// Only list files with a video mimetype in the transfer catalog
	VideoFilesOnly bool `json:"torbox_video_files_only"`
}

// Config holds application configuration
type Config struct {
	Jellyfin JellyfinConfig `json:"jellyfin"`
	Stremio  StremioConfig  `json:"stremio"`
	Torbox   TorboxConfig   `json:"torbox"`

	// API server settings
	APIPort    int    `json:"api_port"`
	APIBaseURL string `json:"api_base_url"`
	LogLevel   string `json:"log_level"`

	// Internal - where was this config loaded from?
	LoadedPath string `json:"-"`
}

// Load is intended for startup only. It loads configuration from config.json,
// applies environment variable overrides once, then saves the merged config.
// Environment variables are not read again after startup; subsequent reloads
// use only the saved config.
// Priority: Environment variables (if not empty) > config.json > defaults
func Load() (*Config, error) {
	dataDir := paths.GetDataDir()
	configPath := filepath.Join(dataDir, "config.json")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("Failed to create data directory", "dir", dataDir, "err", err)
	}

	cfg := &Config{
		Jellyfin: JellyfinConfig{
			TranscodeCodec: "h264",
		},
		APIPort:    7010,
		APIBaseURL: "http://localhost:7010",
		LogLevel:   "INFO",
		LoadedPath: configPath,
	}

	if err := cfg.LoadFile(configPath); err != nil {
		if os.IsNotExist(err) {
			logger.Info("No config found, creating new one", "path", configPath)
		} else {
			logger.Warn("Failed to load config, using defaults", "path", configPath, "err", err)
		}
	} else {
		logger.Info("Loaded configuration", "path", configPath)
	}

	overrides, keys := env.ReadConfigOverrides()
	ApplyEnvOverrides(cfg, overrides, keys)

	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config on startup", "err", err)
	} else {
		logger.Info("Saved merged configuration", "path", configPath)
	}

	if cfg.Jellyfin.URL == "" && len(cfg.Stremio.Addons) == 0 && cfg.Stremio.AuthKey == "" &&
		cfg.Stremio.Email == "" && cfg.Torbox.APIKey == "" {
		logger.Warn("No backends configured. Add some via the web UI or environment")
	}

	return cfg, nil
}

// LoadFile overrides config with values from a JSON file
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(c); err != nil {
		return err
	}
	c.LoadedPath = path
	return nil
}

// Save saves the configuration to the path it was loaded from
func (c *Config) Save() error {
	path := c.LoadedPath
	if path == "" {
		path = "config.json"
	}
	return c.SaveFile(path)
}

// SaveFile saves the current configuration to a JSON file
func (c *Config) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// keySet returns true if s is in list.
func keySet(list []string, s string) bool {
	for _, k := range list {
		if k == s {
			return true
		}
	}
	return false
}

// ApplyEnvOverrides applies environment-derived overrides to cfg (used at startup only).
// Only fields present in keys are applied, so env vars override file values per setting.
func ApplyEnvOverrides(cfg *Config, o env.ConfigOverrides, keys []string) {
	if keySet(keys, env.KeyJellyfinURL) {
		cfg.Jellyfin.URL = o.JellyfinURL
	}
	if keySet(keys, env.KeyJellyfinUsername) {
		cfg.Jellyfin.Username = o.JellyfinUsername
	}
	if keySet(keys, env.KeyJellyfinPassword) {
		cfg.Jellyfin.Password = o.JellyfinPassword
	}
	if keySet(keys, env.KeyStremioAddons) {
		cfg.Stremio.Addons = o.StremioAddons
	}
	if keySet(keys, env.KeyStremioEmail) {
		cfg.Stremio.Email = o.StremioEmail
	}
	if keySet(keys, env.KeyStremioPassword) {
		cfg.Stremio.Password = o.StremioPassword
	}
	if keySet(keys, env.KeyStremioAuthKey) {
		cfg.Stremio.AuthKey = o.StremioAuthKey
	}
	if keySet(keys, env.KeyStremioServerURL) {
		cfg.Stremio.ServerURL = o.StremioServerURL
	}
	if keySet(keys, env.KeyTorboxAPIKey) {
		cfg.Torbox.APIKey = o.TorboxAPIKey
	}
	if keySet(keys, env.KeyTranscodeCodec) {
		cfg.Jellyfin.TranscodeCodec = o.TranscodeCodec
	}
	if keySet(keys, env.KeyAPIPort) {
		cfg.APIPort = o.APIPort
	}
	if keySet(keys, env.KeyAPIBaseURL) {
		cfg.APIBaseURL = o.APIBaseURL
	}
	if keySet(keys, env.KeyLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
}

// GetEnvOverrideKeys returns config keys currently overridden by environment variables.
func GetEnvOverrideKeys() []string {
	return env.OverrideKeys()
}
