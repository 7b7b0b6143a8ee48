package torbox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"streambridge/pkg/backend"
	"streambridge/pkg/logger"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const listPageSize = 1000

// Transfer is one entry of the account's transfer catalog.
type Transfer struct {
	Kind          string         `json:"kind"`
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	CachedAt      string         `json:"cached_at"`
	Progress      float64        `json:"progress"`
	DownloadState string         `json:"download_state"`
	Size          int64          `json:"size"`
	Ratio         float64        `json:"ratio"`
	DownloadSpeed int64          `json:"download_speed"`
	UploadSpeed   int64          `json:"upload_speed"`
	ETA           int64          `json:"eta"`
	Files         []TransferFile `json:"files"`
}

// TransferFile is one file inside a transfer.
type TransferFile struct {
	ID        int64  `json:"id"`
	Size      int64  `json:"size"`
	ShortName string `json:"short_name"`
	Mimetype  string `json:"mimetype"`
}

// Transfer catalog sort modes.
const (
	SortName          = "Name"
	SortSize          = "Size"
	SortAddedDate     = "AddedDate"
	SortCachedDate    = "CachedDate"
	SortLastUpdated   = "LastUpdated"
	SortProgress      = "Progress"
	SortRatio         = "Ratio"
	SortDownloadSpeed = "DownloadSpeed"
	SortUploadSpeed   = "UploadSpeed"
	SortETA           = "ETA"
)

// Transfers returns the transfer catalog snapshot through the discovery
// cache, keyed by API key. All three kinds are fetched in parallel and
// paginated until a short page.
func (c *Client) Transfers(ctx context.Context) ([]Transfer, bool) {
	return c.listCache.Ensure(ctx, "transfers", c.apiKey, func(ctx context.Context) ([]Transfer, error) {
		var (
			mu  sync.Mutex
			all []Transfer
		)
		g, ctx := errgroup.WithContext(ctx)

		for _, kind := range transferKinds {
			g.Go(func() error {
				transfers, err := c.listKind(ctx, kind)
				if err != nil {
					return fmt.Errorf("torbox %s list: %w", kind, err)
				}
				mu.Lock()
				all = append(all, transfers...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		logger.Debug("Torbox transfer catalog fetched", "count", len(all))
		return all, nil
	})
}

// InvalidateTransfers forces a refetch of the transfer catalog.
func (c *Client) InvalidateTransfers() {
	c.listCache.Invalidate("transfers")
}

func (c *Client) listKind(ctx context.Context, kind string) ([]Transfer, error) {
	var out []Transfer
	for offset := 0; ; offset += listPageSize {
		u := fmt.Sprintf("%s/v1/api/%s/mylist?limit=%d&offset=%d", c.baseURL, kind, listPageSize, offset)

		var page dataDto[[]listItemDto]
		if err := c.get(ctx, u, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Data {
			out = append(out, c.toTransfer(kind, item))
		}
		if len(page.Data) < listPageSize {
			return out, nil
		}
	}
}

func (c *Client) toTransfer(kind string, item listItemDto) Transfer {
	files := item.Files
	if c.cfg.VideoFilesOnly {
		files = lo.Filter(item.Files, func(f fileDto, _ int) bool {
			return strings.HasPrefix(strings.ToLower(f.Mimetype), "video")
		})
	}

	return Transfer{
		Kind:          kind,
		ID:            item.ID,
		Name:          item.Name,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
		CachedAt:      item.CachedAt,
		Progress:      item.Progress,
		DownloadState: item.DownloadState,
		Size:          item.Size,
		Ratio:         item.Ratio,
		DownloadSpeed: item.DownloadSpeed,
		UploadSpeed:   item.UploadSpeed,
		ETA:           item.ETA,
		Files: lo.Map(files, func(f fileDto, _ int) TransferFile {
			return TransferFile(f)
		}),
	}
}

// SearchTransfers filters the catalog by name substring and sorts it.
func (c *Client) SearchTransfers(ctx context.Context, query, sortMode string) ([]Transfer, bool) {
	transfers, ok := c.Transfers(ctx)
	if !ok {
		return nil, false
	}

	filtered := lo.Filter(transfers, func(t Transfer, _ int) bool {
		return query == "" || strings.Contains(strings.ToLower(t.Name), strings.ToLower(query))
	})

	sortTransfers(filtered, sortMode)
	return filtered, true
}

func sortTransfers(items []Transfer, mode string) {
	switch mode {
	case SortName:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	case SortSize:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Size < items[j].Size })
	case SortAddedDate:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt < items[j].CreatedAt })
	case SortCachedDate:
		sort.SliceStable(items, func(i, j int) bool { return items[i].CachedAt < items[j].CachedAt })
	case SortLastUpdated:
		sort.SliceStable(items, func(i, j int) bool { return items[i].UpdatedAt < items[j].UpdatedAt })
	case SortProgress:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Progress < items[j].Progress })
	case SortRatio:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Ratio < items[j].Ratio })
	case SortDownloadSpeed:
		sort.SliceStable(items, func(i, j int) bool { return items[i].DownloadSpeed < items[j].DownloadSpeed })
	case SortUploadSpeed:
		sort.SliceStable(items, func(i, j int) bool { return items[i].UploadSpeed < items[j].UploadSpeed })
	case SortETA:
		sort.SliceStable(items, func(i, j int) bool { return items[i].ETA < items[j].ETA })
	}
}

// ItemRefFor returns the item reference of one transfer file.
func ItemRefFor(t Transfer, f TransferFile) backend.ItemRef {
	return backend.ItemRef{
		Kind: "video",
		ID:   fmt.Sprintf("%s,%d,%d", t.Kind, t.ID, f.ID),
	}
}
