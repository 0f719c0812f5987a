// Package manifest caches the server's lookup collections (incident types,
// unit types, equipment) and tracks the delta cursor for incremental
// refreshes.
package manifest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/luke-gs/cadsync/internal/cad"
)

// Collections fetched by default.
var DefaultCollections = []string{"incidentTypes", "unitTypes", "equipment"}

// Fetcher retrieves manifest deltas.
type Fetcher interface {
	FetchManifest(ctx context.Context, collections []string, since time.Time) (*cad.ManifestDelta, error)
}

// Ensure the dispatch client satisfies Fetcher at compile time.
var _ Fetcher = (*cad.Client)(nil)

// Cache holds manifest items by collection and ID.
type Cache struct {
	mu    sync.RWMutex
	items map[string]map[string]cad.ManifestItem
	since time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{items: make(map[string]map[string]cad.ManifestItem)}
}

// Apply merges a delta. Inactive items are removed. The delta timestamp
// becomes the cursor for the next refresh if it is newer.
func (c *Cache) Apply(delta *cad.ManifestDelta) {
	if delta == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range delta.Items {
		if it.Collection == "" || it.ID == "" {
			continue
		}
		coll := c.items[it.Collection]
		if !it.Active {
			delete(coll, it.ID)
			continue
		}
		if coll == nil {
			coll = make(map[string]cad.ManifestItem)
			c.items[it.Collection] = coll
		}
		coll[it.ID] = it
	}
	if delta.Timestamp.After(c.since) {
		c.since = delta.Timestamp
	}
}

// Refresh fetches changes since the cursor and applies them.
func (c *Cache) Refresh(ctx context.Context, f Fetcher, collections []string) (int, error) {
	if len(collections) == 0 {
		collections = DefaultCollections
	}
	delta, err := f.FetchManifest(ctx, collections, c.Since())
	if err != nil {
		return 0, fmt.Errorf("refresh manifest: %w", err)
	}
	c.Apply(delta)
	if delta == nil {
		return 0, nil
	}
	return len(delta.Items), nil
}

// Since returns the delta cursor. It is zero before the first Apply.
func (c *Cache) Since() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.since
}

// Title returns the display title of an item, or id itself when unknown.
func (c *Cache) Title(collection, id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if it, ok := c.items[collection][id]; ok && it.Title != "" {
		return it.Title
	}
	return id
}

// Items returns a collection ordered by title.
func (c *Cache) Items(collection string) []cad.ManifestItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coll := c.items[collection]
	out := make([]cad.ManifestItem, 0, len(coll))
	for _, it := range coll {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Reset empties the cache and the cursor.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]map[string]cad.ManifestItem)
	c.since = time.Time{}
}
