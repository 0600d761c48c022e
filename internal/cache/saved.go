package cache

import (
	"context"
	"encoding/json"
	"time"

	"awaves/internal/types"
)

// SavedCache holds per-user saved-selection lists. Change detection
// evicts entries here so a flagged selection is never read stale.
type SavedCache struct {
	client *Client
	ttl    time.Duration
}

// NewSavedCache creates the saved-items cache.
func NewSavedCache(client *Client, ttl time.Duration) *SavedCache {
	return &SavedCache{client: client, ttl: ttl}
}

// Get returns a user's cached saved items, or nil on a miss.
func (c *SavedCache) Get(ctx context.Context, userID string) []types.SavedSelection {
	raw, ok := c.client.get(ctx, keySavedPrefix+userID)
	if !ok {
		return nil
	}
	var items []types.SavedSelection
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// Store caches a user's saved items.
func (c *SavedCache) Store(ctx context.Context, userID string, items []types.SavedSelection) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	c.client.set(ctx, keySavedPrefix+userID, string(raw), c.ttl)
}

// Invalidate drops one user's saved-items entry.
func (c *SavedCache) Invalidate(ctx context.Context, userID string) {
	c.client.del(ctx, keySavedPrefix+userID)
}

// InvalidateMany drops the saved-items entries of every given user in a
// single pipelined delete.
func (c *SavedCache) InvalidateMany(ctx context.Context, userIDs []string) {
	keys := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, keySavedPrefix+userID)
	}
	c.client.del(ctx, keys...)
}
