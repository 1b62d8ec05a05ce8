package window

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Catalog exposes the one operation the rest of the bot needs: the current
// set of tradeable BTC 5-minute windows.
type Catalog struct {
	client *Client
}

// NewCatalog builds a catalog against the given venue client.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client}
}

// ListActiveWindows unions two independent discovery paths — deterministic
// enumeration of six window slugs (the current window and the five after
// it), and a series search against the
// venue — deduplicated by slug and sorted by window end ascending.
func (c *Catalog) ListActiveWindows(ctx context.Context) ([]Window, error) {
	seen := make(map[string]bool)
	var windows []Window

	for _, slug := range enumerateSlugs(time.Now().UTC(), 6) {
		w, ok, err := c.client.FetchBySlug(ctx, slug)
		if err != nil {
			slog.Debug("window: enumeration fetch failed", "slug", slug, "err", err)
			continue
		}
		if !ok || seen[w.Slug] {
			continue
		}
		seen[w.Slug] = true
		windows = append(windows, w)
	}

	found, err := c.client.SearchActive(ctx, 20)
	if err != nil {
		slog.Debug("window: series search failed", "err", err)
	}
	for _, w := range found {
		if seen[w.Slug] {
			continue
		}
		seen[w.Slug] = true
		windows = append(windows, w)
	}

	filtered := windows[:0]
	for _, w := range windows {
		if !w.Closed {
			filtered = append(filtered, w)
		}
	}
	windows = filtered

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].WindowEnd.Before(windows[j].WindowEnd)
	})

	return windows, nil
}

// enumerateSlugs computes the slugs for the current and next (count-1)
// 5-minute windows, based on wall-clock time.
func enumerateSlugs(now time.Time, count int) []string {
	currentBoundary := now.Unix() / 300 * 300
	nextBoundary := currentBoundary + 300

	slugs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		end := nextBoundary + int64(i)*300
		slugs = append(slugs, fmt.Sprintf("btc-updown-5m-%d", end))
	}
	return slugs
}
