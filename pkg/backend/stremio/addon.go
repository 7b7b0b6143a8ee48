package stremio

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"streambridge/pkg/backend"
	"streambridge/pkg/config"
	"streambridge/pkg/discovery"
	"streambridge/pkg/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// Addon is one installed Stremio addon with its parsed manifest.
type Addon struct {
	TransportURL string
	Manifest     manifestDto
}

// transportBase returns the addon's transport URL with the manifest filename
// stripped, the base all resource paths hang off.
func (a *Addon) transportBase() string {
	u := strings.TrimSuffix(a.TransportURL, "/")
	if idx := strings.LastIndex(u, "/"); idx > 0 {
		return u[:idx]
	}
	return u
}

// Manager fetches and caches the addon collection, performs account login,
// and shares the subtitle fan-out between addon adapters.
type Manager struct {
	cfg    config.StremioConfig
	client *http.Client

	mu      sync.RWMutex
	authKey string

	addonCache *discovery.Cache[[]*Addon]
	libCache   *discovery.Cache[[]LibraryItem]
	subsCache  *lru.Cache[string, []backend.SubtitleTrack]
}

// NewManager creates an addon manager from config.
func NewManager(cfg config.StremioConfig) *Manager {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}
	subsCache, _ := lru.New[string, []backend.SubtitleTrack](32)

	return &Manager{
		cfg: cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		authKey:    cfg.AuthKey,
		addonCache: discovery.NewCache[[]*Addon](),
		libCache:   discovery.NewCache[[]LibraryItem](),
		subsCache:  subsCache,
	}
}

// AuthKey returns the current account auth key, empty when not logged in.
func (m *Manager) AuthKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authKey
}

// Login exchanges email/password for an auth key. Cached addon and library
// state belongs to the previous account and is discarded.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	payload := map[string]any{
		"email":    email,
		"facebook": false,
		"password": password,
		"type":     "Login",
	}

	var result resultDto[loginDto]
	if err := m.postJSON(ctx, apiURL+"/api/login", payload, &result); err != nil {
		return fmt.Errorf("stremio login: %w", err)
	}
	if result.Result.AuthKey == "" {
		return fmt.Errorf("%w: login response without auth key", backend.ErrMalformedResponse)
	}

	m.mu.Lock()
	m.authKey = result.Result.AuthKey
	m.mu.Unlock()

	m.addonCache.InvalidateAll()
	m.libCache.InvalidateAll()

	logger.Info("Stremio login ok")
	return nil
}

// Addons returns the installed addons through the discovery cache, keyed by
// the manifest URL list (or the account auth key). While the collection is
// being fetched it returns nil and false.
func (m *Manager) Addons(ctx context.Context) ([]*Addon, bool) {
	key := strings.Join(m.cfg.Addons, " ")
	if key == "" {
		key = "user|" + m.AuthKey()
	}

	return m.addonCache.Ensure(ctx, "addons", key, func(ctx context.Context) ([]*Addon, error) {
		if len(m.cfg.Addons) > 0 {
			return m.addonsFromURLs(ctx, m.cfg.Addons)
		}
		if m.AuthKey() != "" {
			return m.addonsFromAccount(ctx)
		}
		return nil, fmt.Errorf("%w: no addons configured and not logged in", backend.ErrBackendRejected)
	})
}

// InvalidateAddons forces a refetch of the addon collection.
func (m *Manager) InvalidateAddons() {
	m.addonCache.Invalidate("addons")
}

// addonsFromURLs fetches each manifest in parallel. A failing manifest is
// logged and skipped so one dead addon does not hide the rest.
func (m *Manager) addonsFromURLs(ctx context.Context, urls []string) ([]*Addon, error) {
	results := make([]*Addon, len(urls))
	g, ctx := errgroup.WithContext(ctx)

	for i, manifestURL := range urls {
		g.Go(func() error {
			fetchURL := strings.Replace(manifestURL, "stremio://", "https://", 1)

			var manifest manifestDto
			if err := m.getJSON(ctx, fetchURL, &manifest); err != nil {
				logger.Warn("Addon manifest fetch failed", "url", fetchURL, "err", err)
				return nil
			}
			results[i] = &Addon{TransportURL: fetchURL, Manifest: manifest}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var addons []*Addon
	for _, a := range results {
		if a != nil {
			addons = append(addons, a)
		}
	}
	if len(addons) == 0 {
		return nil, fmt.Errorf("%w: no addon manifest could be fetched", backend.ErrBackendUnavailable)
	}
	return addons, nil
}

// addonsFromAccount fetches the account's addon collection.
func (m *Manager) addonsFromAccount(ctx context.Context) ([]*Addon, error) {
	payload := map[string]any{
		"authKey": m.AuthKey(),
		"type":    "AddonCollectionGet",
		"update":  true,
	}

	var result resultDto[addonResultDto]
	if err := m.postJSON(ctx, apiURL+"/api/addonCollectionGet", payload, &result); err != nil {
		return nil, fmt.Errorf("addon collection: %w", err)
	}

	addons := make([]*Addon, 0, len(result.Result.Addons))
	for _, a := range result.Result.Addons {
		addons = append(addons, &Addon{TransportURL: a.TransportURL, Manifest: a.Manifest})
	}
	return addons, nil
}

// SubtitleTracks fans out to every subtitle-capable addon and merges the
// tracks, labelled with the addon name. Results are cached per item so the
// per-addon stream adapters share one fetch.
func (m *Manager) SubtitleTracks(ctx context.Context, kind, id string) []backend.SubtitleTrack {
	cacheKey := kind + ":" + id
	if tracks, ok := m.subsCache.Get(cacheKey); ok {
		return tracks
	}

	addons, ok := m.Addons(ctx)
	if !ok {
		return nil
	}

	var (
		mu     sync.Mutex
		tracks []backend.SubtitleTrack
	)
	g, ctx := errgroup.WithContext(ctx)

	for _, addon := range addons {
		if !addon.Manifest.isValidResource("subtitles", kind, id) {
			continue
		}
		g.Go(func() error {
			u := fmt.Sprintf("%s/subtitles/%s/%s.json", addon.transportBase(), url.PathEscape(kind), url.PathEscape(id))

			var result subtitleResultDto
			if err := m.getJSON(ctx, u, &result); err != nil {
				logger.Warn("Subtitle fetch failed", "addon", addon.Manifest.Name, "err", err)
				return nil
			}

			mu.Lock()
			for _, s := range result.Subtitles {
				tracks = append(tracks, backend.SubtitleTrack{
					URL:   s.URL,
					Label: fmt.Sprintf("(%s) %s", addon.Manifest.Name, s.Lang),
				})
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	m.subsCache.Add(cacheKey, tracks)
	return tracks
}

func (m *Manager) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return m.doJSON(req, out)
}

func (m *Manager) postJSON(ctx context.Context, u string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return m.doJSON(req, out)
}

func (m *Manager) doJSON(req *http.Request, out any) error {
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", backend.ErrBackendUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", backend.ErrBackendRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
	}
	return nil
}
