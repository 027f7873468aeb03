package steam

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

// CatalogEntry is one app in the catalog delta.
type CatalogEntry struct {
	AppID        int64  `json:"appid"`
	Name         string `json:"name"`
	LastModified int64  `json:"last_modified"`
}

// Delta is the set of games modified after a watermark.
type Delta struct {
	Apps []CatalogEntry
	// MaxModified is the highest last_modified seen, 0 for an empty delta.
	MaxModified int64
}

// IDs returns the app ids of the delta in upstream order.
func (d *Delta) IDs() []int64 {
	out := make([]int64, 0, len(d.Apps))
	for _, a := range d.Apps {
		out = append(out, a.AppID)
	}
	return out
}

type catalogResponse struct {
	Response struct {
		Apps            []CatalogEntry `json:"apps"`
		HaveMoreResults bool           `json:"have_more_results"`
		LastAppID       int64          `json:"last_appid"`
	} `json:"response"`
}

// maxCatalogPages bounds paging if upstream keeps claiming more results.
var maxCatalogPages = 1000

// ErrIncomplete means the delta could not be read to its last page.
var ErrIncomplete = errors.New("steam: incomplete catalog delta")

// CatalogDelta lists games modified after since, following pagination. A
// delta is returned only when every page was read; a partial one would move
// the checkpoint past apps on the missing pages.
func (c *Client) CatalogDelta(ctx context.Context, since int64) (*Delta, error) {
	delta := &Delta{}
	var lastAppID int64

	for page := 0; page < maxCatalogPages; page++ {
		q := url.Values{}
		if c.cfg.APIKey != "" {
			q.Set("key", c.cfg.APIKey)
		}
		q.Set("if_modified_since", itoa(since))
		q.Set("include_games", "1")
		q.Set("max_results", strconv.Itoa(c.cfg.PageSize))
		if lastAppID > 0 {
			q.Set("last_appid", itoa(lastAppID))
		}
		u, err := withQuery(c.cfg.CatalogURL, q)
		if err != nil {
			return nil, err
		}

		body, err := c.get(ctx, "catalog", u)
		if err != nil {
			return nil, err
		}

		var resp catalogResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("catalog: decode: %w: %v", ErrMalformed, err)
		}

		for _, a := range resp.Response.Apps {
			if a.AppID <= 0 {
				continue
			}
			delta.Apps = append(delta.Apps, a)
			if a.LastModified > delta.MaxModified {
				delta.MaxModified = a.LastModified
			}
		}

		if !resp.Response.HaveMoreResults {
			return delta, nil
		}
		if resp.Response.LastAppID <= lastAppID {
			return nil, fmt.Errorf("catalog: cursor stuck at %d: %w", lastAppID, ErrIncomplete)
		}
		lastAppID = resp.Response.LastAppID
		c.log.Debug().Int64("last_appid", lastAppID).Int("apps", len(delta.Apps)).Msg("catalog delta has more pages")
	}
	return nil, fmt.Errorf("catalog: more results after %d pages: %w", maxCatalogPages, ErrIncomplete)
}

// AppListEntry is one row of the full catalog listing.
type AppListEntry struct {
	AppID int64  `json:"appid"`
	Name  string `json:"name"`
}

type appListResponse struct {
	AppList struct {
		Apps []AppListEntry `json:"apps"`
	} `json:"applist"`
}

// AppList fetches the full id and name listing of the catalog.
func (c *Client) AppList(ctx context.Context) ([]AppListEntry, error) {
	body, err := c.get(ctx, "applist", c.cfg.AppListURL)
	if err != nil {
		return nil, err
	}
	var resp appListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("applist: decode: %w: %v", ErrMalformed, err)
	}
	return resp.AppList.Apps, nil
}
