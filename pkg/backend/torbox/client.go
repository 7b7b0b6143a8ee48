// Package torbox exposes a Torbox debrid account as a backend: transfers
// already on the account are enumerated and individual files are resolved to
// short-lived download URLs on demand.
package torbox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streambridge/pkg/backend"
	"streambridge/pkg/config"
	"streambridge/pkg/discovery"
)

const defaultBaseURL = "https://api.torbox.app"

// Transfer kinds known to the API.
const (
	KindTorrents = "torrents"
	KindWebDL    = "webdl"
	KindUsenet   = "usenet"
)

var transferKinds = []string{KindTorrents, KindWebDL, KindUsenet}

// Client is the Torbox backend adapter.
type Client struct {
	baseURL string
	apiKey  string
	cfg     config.TorboxConfig
	client  *http.Client

	listCache *discovery.Cache[[]Transfer]
}

// Ensure Client implements backend.Adapter at compile time.
var _ backend.Adapter = (*Client)(nil)

// NewClient creates a Torbox client from config.
func NewClient(cfg config.TorboxConfig) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  cfg.APIKey,
		cfg:     cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		listCache: discovery.NewCache[[]Transfer](),
	}
}

// Name returns the backend name
func (c *Client) Name() string {
	return "Torbox"
}

// Describe restricts the backend to ids it minted itself: "{kind},{id},{file}".
func (c *Client) Describe() backend.Descriptor {
	prefixes := make([]string, len(transferKinds))
	for i, k := range transferKinds {
		prefixes[i] = k + ","
	}
	return backend.Descriptor{
		ID:       "torbox",
		Endpoint: c.baseURL,
		Capabilities: []backend.Capability{
			{Resource: "stream", IDPrefixes: prefixes},
		},
	}
}

// resolveToken routes a Torbox candidate back to its transfer file.
type resolveToken struct {
	Kind       string `json:"kind"`
	TransferID int64  `json:"transfer_id"`
	FileID     int64  `json:"file_id"`
}

// parseItemID splits "{kind},{transferID},{fileID}".
func parseItemID(id string) (resolveToken, error) {
	parts := strings.SplitN(id, ",", 3)
	if len(parts) != 3 {
		return resolveToken{}, fmt.Errorf("%w: torbox id %q", backend.ErrBackendRejected, id)
	}
	var tok resolveToken
	tok.Kind = parts[0]
	switch tok.Kind {
	case KindTorrents, KindWebDL, KindUsenet:
	default:
		return resolveToken{}, fmt.Errorf("%w: torbox kind %q", backend.ErrBackendRejected, tok.Kind)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &tok.TransferID); err != nil {
		return resolveToken{}, fmt.Errorf("%w: torbox transfer id %q", backend.ErrBackendRejected, parts[1])
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &tok.FileID); err != nil {
		return resolveToken{}, fmt.Errorf("%w: torbox file id %q", backend.ErrBackendRejected, parts[2])
	}
	return tok, nil
}

// ListCandidates produces one candidate for the referenced transfer file.
// Download URLs are short-lived, so only a token is attached here.
func (c *Client) ListCandidates(ctx context.Context, item backend.ItemRef) ([]backend.Candidate, error) {
	tok, err := parseItemID(item.ID)
	if err != nil {
		return nil, err
	}

	title := item.ID
	if transfer, file, ok := c.findFile(ctx, tok); ok {
		title = file.ShortName
		if title == "" {
			title = transfer.Name
		}
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return nil, err
	}
	return []backend.Candidate{{
		Title:     title,
		Quality:   "Debrid",
		SortKey:   0,
		BackendID: "torbox",
		Token:     payload,
	}}, nil
}

// findFile looks the referenced file up in the cached transfer catalog, for
// a human-readable title. Best effort only.
func (c *Client) findFile(ctx context.Context, tok resolveToken) (Transfer, TransferFile, bool) {
	transfers, ok := c.Transfers(ctx)
	if !ok {
		return Transfer{}, TransferFile{}, false
	}
	for _, t := range transfers {
		if t.Kind != tok.Kind || t.ID != tok.TransferID {
			continue
		}
		for _, f := range t.Files {
			if f.ID == tok.FileID {
				return t, f, true
			}
		}
	}
	return Transfer{}, TransferFile{}, false
}

// Resolve requests a fresh download URL for the candidate's file. A transfer
// the API no longer knows about maps to ErrResolutionExpired.
func (c *Client) Resolve(ctx context.Context, cand backend.Candidate) (backend.FinalStream, error) {
	var tok resolveToken
	if err := json.Unmarshal(cand.Token, &tok); err != nil {
		return backend.FinalStream{}, fmt.Errorf("%w: bad torbox token: %v", backend.ErrBackendRejected, err)
	}

	var idParam string
	switch tok.Kind {
	case KindTorrents:
		idParam = "torrent_id"
	case KindWebDL:
		idParam = "web_id"
	case KindUsenet:
		idParam = "usenet_id"
	default:
		return backend.FinalStream{}, fmt.Errorf("%w: torbox kind %q", backend.ErrBackendRejected, tok.Kind)
	}

	q := url.Values{}
	q.Set(idParam, fmt.Sprintf("%d", tok.TransferID))
	q.Set("file_id", fmt.Sprintf("%d", tok.FileID))
	q.Set("token", c.apiKey)
	u := fmt.Sprintf("%s/v1/api/%s/requestdl?%s", c.baseURL, tok.Kind, q.Encode())

	var result dataDto[string]
	if err := c.get(ctx, u, &result); err != nil {
		return backend.FinalStream{}, fmt.Errorf("torbox requestdl: %w", err)
	}
	if result.Data == "" {
		return backend.FinalStream{}, fmt.Errorf("%w: requestdl without url", backend.ErrMalformedResponse)
	}

	return backend.FinalStream{
		URL:       result.Data,
		Subtitles: cand.Subtitles,
	}, nil
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, u string, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: no api key", backend.ErrBackendUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", backend.ErrResolutionExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", backend.ErrBackendUnavailable, resp.StatusCode)
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
