package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"streambridge/pkg/api"
	"streambridge/pkg/backend/jellyfin"
	"streambridge/pkg/backend/stremio"
	"streambridge/pkg/backend/torbox"
	"streambridge/pkg/config"
	"streambridge/pkg/env"
	"streambridge/pkg/logger"
	"streambridge/pkg/paths"
	"streambridge/pkg/prefs"
	"streambridge/pkg/resolver"

	"github.com/joho/godotenv"
)

const version = "v0.1.0"

func main() {
	// Load environment variables for logger and bootstrap
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	logger.Init(env.LogLevel())
	defer logger.Close()

	logger.Info("Starting StreamBridge", "version", version)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "err", err)
	}

	prefStore := prefs.NewStore(paths.PrefsFile())
	for key, value := range env.ReadPrefOverrides() {
		prefStore.Set(key, value)
	}

	registry := resolver.NewRegistry()

	var jellyfinClient *jellyfin.Client
	if cfg.Jellyfin.URL != "" {
		jellyfinClient = jellyfin.NewClient(cfg.Jellyfin, deviceID(), prefStore)
		registry.Register(jellyfinClient)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := jellyfinClient.Login(ctx, cfg.Jellyfin.Username, cfg.Jellyfin.Password); err != nil {
				logger.Warn("Jellyfin login failed", "url", cfg.Jellyfin.URL, "err", err)
				return
			}
			logger.Info("Jellyfin connected", "url", cfg.Jellyfin.URL)
		}()
	}

	var stremioManager *stremio.Manager
	if len(cfg.Stremio.Addons) > 0 || cfg.Stremio.AuthKey != "" || cfg.Stremio.Email != "" {
		stremioManager = stremio.NewManager(cfg.Stremio)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if cfg.Stremio.AuthKey == "" && cfg.Stremio.Email != "" {
				if err := stremioManager.Login(ctx, cfg.Stremio.Email, cfg.Stremio.Password); err != nil {
					logger.Warn("Stremio login failed", "err", err)
				}
			}

			// Kick off addon discovery so adapters are ready for the
			// first stream request.
			if adapters, ok := stremioManager.Adapters(ctx); ok {
				for _, a := range adapters {
					registry.Register(a)
				}
				logger.Info("Stremio addons loaded", "count", len(adapters))
			}
		}()
	}

	var torboxClient *torbox.Client
	if cfg.Torbox.APIKey != "" {
		torboxClient = torbox.NewClient(cfg.Torbox)
		registry.Register(torboxClient)
	}

	apiServer := api.NewServer(cfg, prefStore, registry, jellyfinClient, stremioManager, torboxClient)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	logger.Info("API listening", "addr", addr, "base_url", cfg.APIBaseURL)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", "err", err)
	}
}

// deviceID derives a stable identifier for this installation based on the
// data directory. Jellyfin keys active sessions on it.
func deviceID() string {
	return fmt.Sprintf("streambridge-%s", paths.InstallID())
}
