package paths

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the data directory path
// If running in Docker (/.dockerenv exists), returns /app/data
// Otherwise returns current directory (.)
func GetDataDir() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		// Running in Docker container
		return "/app/data"
	}
	return "."
}

// ConfigFile returns the path of the JSON config file inside the data directory.
func ConfigFile() string {
	return filepath.Join(GetDataDir(), "config.json")
}

// PrefsFile returns the path of the playback preferences file inside the data directory.
func PrefsFile() string {
	return filepath.Join(GetDataDir(), "prefs.json")
}

// InstallID returns a stable random identifier for this installation,
// generated on first use and persisted in the data directory.
func InstallID() string {
	idFile := filepath.Join(GetDataDir(), "install_id")
	if data, err := os.ReadFile(idFile); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	buf := make([]byte, 8)
	rand.Read(buf)
	id := hex.EncodeToString(buf)
	if err := os.WriteFile(idFile, []byte(id), 0644); err != nil {
		// Not persisted, a new id will be generated next start.
		return id
	}
	return id
}
