// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names (single source of truth)
const (
	JellyfinURL       = "JELLYFIN_URL"
	JellyfinUsername  = "JELLYFIN_USERNAME"
	JellyfinPassword  = "JELLYFIN_PASSWORD"
	StremioAddons     = "STREMIO_ADDONS"
	StremioEmail      = "STREMIO_EMAIL"
	StremioPassword   = "STREMIO_PASSWORD"
	StremioAuthKey    = "STREMIO_AUTH_KEY"
	StremioServerURL  = "STREMIO_SERVER_URL"
	TorboxAPIKey      = "TORBOX_API_KEY"
	APIPort           = "API_PORT"
	APIBaseURL        = "API_BASE_URL"
	LOGLevel          = "LOG_LEVEL"
	PreferredQuality  = "PREFERRED_QUALITY"
	PreferredAudio    = "PREFERRED_AUDIO_LANG"
	PreferredSubtitle = "PREFERRED_SUB_LANG"
	TranscodeCodec    = "TRANSCODE_CODEC"
	TZVar             = "TZ"
)

// Config JSON keys returned by OverrideKeys (for UI warnings)
const (
	KeyJellyfinURL      = "jellyfin_url"
	KeyJellyfinUsername = "jellyfin_username"
	KeyJellyfinPassword = "jellyfin_password"
	KeyStremioAddons    = "stremio_addons"
	KeyStremioEmail     = "stremio_email"
	KeyStremioPassword  = "stremio_password"
	KeyStremioAuthKey   = "stremio_auth_key"
	KeyStremioServerURL = "stremio_server_url"
	KeyTorboxAPIKey     = "torbox_api_key"
	KeyTranscodeCodec   = "transcode_codec"
	KeyAPIPort          = "api_port"
	KeyAPIBaseURL       = "api_base_url"
	KeyLogLevel         = "log_level"
)

// Preference keys settable via environment, matching pkg/prefs.
const (
	PrefKeyQuality      = "preferred_quality"
	PrefKeyAudioLang    = "preferred_audio_lang"
	PrefKeySubtitleLang = "preferred_sub_lang"
)

// TZ returns the TZ environment variable (e.g. for logger timezone).
func TZ() string {
	return os.Getenv(TZVar)
}

// LogLevel returns LOG_LEVEL with default "INFO" (for early logger init before config).
func LogLevel() string {
	if v := os.Getenv(LOGLevel); v != "" {
		return v
	}
	return "INFO"
}

// ConfigOverrides holds all config values that can be set via environment variables.
// Used at startup by config.Load to apply overrides.
type ConfigOverrides struct {
	JellyfinURL      string
	JellyfinUsername string
	JellyfinPassword string
	StremioAddons    []string
	StremioEmail     string
	StremioPassword  string
	StremioAuthKey   string
	StremioServerURL string
	TorboxAPIKey     string
	TranscodeCodec   string
	APIPort          int
	APIBaseURL       string
	LogLevel         string
}

// ReadPrefOverrides reads preference overrides from the environment, keyed by
// the preference names pkg/prefs uses.
func ReadPrefOverrides() map[string]string {
	out := make(map[string]string)
	if v := os.Getenv(PreferredQuality); v != "" {
		out[PrefKeyQuality] = v
	}
	if v := os.Getenv(PreferredAudio); v != "" {
		out[PrefKeyAudioLang] = v
	}
	if v := os.Getenv(PreferredSubtitle); v != "" {
		out[PrefKeySubtitleLang] = v
	}
	return out
}

// ReadConfigOverrides reads all relevant environment variables once and returns
// overrides to apply to config plus the list of config JSON keys that were set
// (for UI "overwritten on restart" warnings).
func ReadConfigOverrides() (ConfigOverrides, []string) {
	var o ConfigOverrides
	var keys []string

	if v := os.Getenv(JellyfinURL); v != "" {
		o.JellyfinURL = v
		keys = append(keys, KeyJellyfinURL)
	}
	if v := os.Getenv(JellyfinUsername); v != "" {
		o.JellyfinUsername = v
		keys = append(keys, KeyJellyfinUsername)
	}
	if v := os.Getenv(JellyfinPassword); v != "" {
		o.JellyfinPassword = v
		keys = append(keys, KeyJellyfinPassword)
	}
	if v := os.Getenv(StremioAddons); v != "" {
		o.StremioAddons = strings.Fields(v)
		keys = append(keys, KeyStremioAddons)
	}
	if v := os.Getenv(StremioEmail); v != "" {
		o.StremioEmail = v
		keys = append(keys, KeyStremioEmail)
	}
	if v := os.Getenv(StremioPassword); v != "" {
		o.StremioPassword = v
		keys = append(keys, KeyStremioPassword)
	}
	if v := os.Getenv(StremioAuthKey); v != "" {
		o.StremioAuthKey = v
		keys = append(keys, KeyStremioAuthKey)
	}
	if v := os.Getenv(StremioServerURL); v != "" {
		o.StremioServerURL = v
		keys = append(keys, KeyStremioServerURL)
	}
	if v := os.Getenv(TorboxAPIKey); v != "" {
		o.TorboxAPIKey = v
		keys = append(keys, KeyTorboxAPIKey)
	}
	if v := os.Getenv(TranscodeCodec); v != "" {
		o.TranscodeCodec = v
		keys = append(keys, KeyTranscodeCodec)
	}
	if v := os.Getenv(APIPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			o.APIPort = port
			keys = append(keys, KeyAPIPort)
		}
	}
	if v := os.Getenv(APIBaseURL); v != "" {
		o.APIBaseURL = v
		keys = append(keys, KeyAPIBaseURL)
	}
	if v := os.Getenv(LOGLevel); v != "" {
		o.LogLevel = v
		keys = append(keys, KeyLogLevel)
	}

	return o, keys
}

// OverrideKeys returns the config JSON keys that have environment overrides set.
// Used by the API to tell the UI which settings show "overwritten on restart" warnings.
func OverrideKeys() []string {
	_, keys := ReadConfigOverrides()
	return keys
}
