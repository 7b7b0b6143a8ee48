package jellyfin

import (
	"context"
	"fmt"
	"net/url"

	"streambridge/pkg/logger"
)

// Library is one browsable media library on the server.
type Library struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Libraries returns the server's browsable libraries through the discovery
// cache. The advisory never blocks: while the view list is being fetched (or
// fetching has been given up on) it returns nil and false.
func (c *Client) Libraries(ctx context.Context) ([]Library, bool) {
	token, userID := c.credentials()
	key := c.baseURL + "|" + token

	return c.libCache.Ensure(ctx, "libraries", key, func(ctx context.Context) ([]Library, error) {
		u := fmt.Sprintf("%s/Users/%s/Views", c.baseURL, url.PathEscape(userID))
		var views viewsDto
		if err := c.get(ctx, u, &views); err != nil {
			return nil, fmt.Errorf("jellyfin views: %w", err)
		}

		libs := make([]Library, 0, len(views.Items))
		for _, v := range views.Items {
			if libraryBlacklist[v.CollectionType] {
				continue
			}
			libs = append(libs, Library{ID: v.ID, Name: v.Name, Type: v.CollectionType})
		}
		logger.Debug("Jellyfin libraries fetched", "count", len(libs))
		return libs, nil
	})
}
