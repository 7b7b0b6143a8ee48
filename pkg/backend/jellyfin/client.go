package jellyfin

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
	"streambridge/pkg/prefs"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	clientName    = "streambridge"
	clientVersion = "0.1.0"
)

// Collection types never offered as browsable libraries.
var libraryBlacklist = map[string]bool{
	"music":       true,
	"musicvideos": true,
	"trailers":    true,
	"books":       true,
	"photos":      true,
	"livetv":      true,
}

// DeviceInfo identifies this client to the Jellyfin server.
type DeviceInfo struct {
	ClientName string
	Version    string
	ID         string
	Name       string
}

// Client is the Jellyfin backend adapter. Login must succeed before
// enumeration or resolution.
type Client struct {
	baseURL string
	device  DeviceInfo
	codec   string
	prefs   *prefs.Store
	client  *http.Client

	mu     sync.RWMutex
	token  string
	userID string

	items    *lru.Cache[string, itemDto]
	libCache *discovery.Cache[[]Library]
}

// Ensure Client implements backend.Adapter at compile time.
var _ backend.Adapter = (*Client)(nil)

// NewClient creates a Jellyfin client from config. deviceID should be stable
// across restarts so the server reuses the device registration.
func NewClient(cfg config.JellyfinConfig, deviceID string, p *prefs.Store) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}

	items, _ := lru.New[string, itemDto](128)

	codec := cfg.TranscodeCodec
	if codec == "" {
		codec = "h264"
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		device: DeviceInfo{
			ClientName: clientName,
			Version:    clientVersion,
			ID:         deviceID,
			Name:       clientName,
		},
		codec: codec,
		prefs: p,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		items:    items,
		libCache: discovery.NewCache[[]Library](),
	}
}

// Name returns the backend name
func (c *Client) Name() string {
	return "Jellyfin"
}

// Describe returns the backend descriptor. A Jellyfin server streams any item
// it knows about, so capabilities carry no kind or id restrictions.
func (c *Client) Describe() backend.Descriptor {
	return backend.Descriptor{
		ID:       "jellyfin",
		Endpoint: c.baseURL,
		Capabilities: []backend.Capability{
			{Resource: "stream"},
			{Resource: "subtitles"},
		},
	}
}

// authHeader builds the MediaBrowser authorization header. Values are
// trimmed, newline-stripped and URL-encoded.
func (c *Client) authHeader(token string) string {
	params := []struct{ key, value string }{
		{"Client", c.device.ClientName},
		{"Version", c.device.Version},
		{"DeviceId", c.device.ID},
		{"Device", c.device.Name},
		{"Token", token},
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.key == "Token" && p.value == "" {
			continue
		}
		v := strings.ReplaceAll(strings.TrimSpace(p.value), "\n", " ")
		parts = append(parts, fmt.Sprintf("%s=%q", p.key, url.QueryEscape(v)))
	}
	return "MediaBrowser " + strings.Join(parts, ", ")
}

// Login authenticates with username/password and stores the access token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{
		"Username": username,
		"Pw":       password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader(""))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %v", backend.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: login returned %d", backend.ErrBackendUnavailable, resp.StatusCode)
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return fmt.Errorf("%w: login: %v", backend.ErrMalformedResponse, err)
	}
	if login.AccessToken == "" || login.SessionInfo.UserID == "" {
		return fmt.Errorf("%w: login response missing token or user id", backend.ErrMalformedResponse)
	}

	c.mu.Lock()
	c.token = login.AccessToken
	c.userID = login.SessionInfo.UserID
	c.mu.Unlock()

	// Credentials changed, so cached libraries and items belong to the old
	// session.
	c.libCache.InvalidateAll()
	c.items.Purge()

	logger.Info("Jellyfin login ok", "server", c.baseURL, "user", login.SessionInfo.UserID)
	return nil
}

// SetCredentials installs a previously obtained token and user id, e.g. from
// a saved session.
func (c *Client) SetCredentials(token, userID string) {
	c.mu.Lock()
	c.token = token
	c.userID = userID
	c.mu.Unlock()
	c.libCache.InvalidateAll()
	c.items.Purge()
}

func (c *Client) credentials() (token, userID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.userID
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, u string, out any) error {
	token, _ := c.credentials()
	if token == "" {
		return fmt.Errorf("%w: not logged in", backend.ErrBackendUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader(token))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
	}
	return nil
}

// post performs an authenticated JSON POST and decodes the response into out.
func (c *Client) post(ctx context.Context, u string, payload, out any) error {
	token, _ := c.credentials()
	if token == "" {
		return fmt.Errorf("%w: not logged in", backend.ErrBackendUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader(token))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkResolveStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
	}
	return nil
}

// checkResolveStatus maps status codes on the play-session path, where a
// missing item means the candidate went stale rather than a bad request.
func checkResolveStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: status %d", backend.ErrResolutionExpired, resp.StatusCode)
	}
	return checkStatus(resp)
}

// checkStatus maps HTTP status codes onto the shared error taxonomy.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", backend.ErrBackendUnavailable, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", backend.ErrBackendUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", backend.ErrBackendRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// item fetches an item DTO with its media sources, through a small LRU so
// repeated enumerations of the same episode skip the round trip.
func (c *Client) item(ctx context.Context, itemID string) (itemDto, error) {
	if cached, ok := c.items.Get(itemID); ok {
		return cached, nil
	}

	_, userID := c.credentials()
	u := fmt.Sprintf("%s/Users/%s/Items/%s?Fields=MediaSources", c.baseURL, url.PathEscape(userID), url.PathEscape(itemID))

	var item itemDto
	if err := c.get(ctx, u, &item); err != nil {
		return itemDto{}, err
	}
	c.items.Add(itemID, item)
	return item, nil
}
