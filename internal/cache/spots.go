package cache

import (
	"context"
	"encoding/json"
	"time"

	"awaves/internal/types"
)

// SpotsCache holds pre-aggregated spot query results in the distributed
// cache so replicas share the cost of store scans.
type SpotsCache struct {
	client *Client

	ttlAllSpots time.Duration
	ttlLatest   time.Duration
	ttlDated    time.Duration
}

// NewSpotsCache creates the spot-result cache. ttlDated bounds the
// lifetime of date-keyed results; their real freshness guard is the
// snapshot generation stamped into each entry.
func NewSpotsCache(client *Client, ttlAllSpots, ttlLatest, ttlDated time.Duration) *SpotsCache {
	return &SpotsCache{
		client:      client,
		ttlAllSpots: ttlAllSpots,
		ttlLatest:   ttlLatest,
		ttlDated:    ttlDated,
	}
}

// datedEntry wraps a date-keyed result with the snapshot generation it
// was computed from. A result from generation N is never served once
// generation N+1 exists.
type datedEntry struct {
	Generation uint64                 `json:"generation"`
	Spots      []types.ForecastRecord `json:"spots"`
}

// GetAllSpots returns the cached latest-per-location view, or nil on a
// miss.
func (c *SpotsCache) GetAllSpots(ctx context.Context) []types.ForecastRecord {
	raw, ok := c.client.get(ctx, KeyAllSpots)
	if !ok {
		return nil
	}
	var spots []types.ForecastRecord
	if err := json.Unmarshal([]byte(raw), &spots); err != nil {
		return nil
	}
	return spots
}

// StoreAllSpots caches the latest-per-location view.
func (c *SpotsCache) StoreAllSpots(ctx context.Context, spots []types.ForecastRecord) {
	raw, err := json.Marshal(spots)
	if err != nil {
		return
	}
	c.client.set(ctx, KeyAllSpots, string(raw), c.ttlAllSpots)
}

// InvalidateAllSpots drops the latest-per-location view.
func (c *SpotsCache) InvalidateAllSpots(ctx context.Context) {
	c.client.del(ctx, KeyAllSpots)
}

// GetForDate returns a cached date/time query result, provided it was
// computed from the given snapshot generation.
func (c *SpotsCache) GetForDate(ctx context.Context, date, timeOfDay string, generation uint64) []types.ForecastRecord {
	raw, ok := c.client.get(ctx, datedKey(date, timeOfDay))
	if !ok {
		return nil
	}
	var entry datedEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil
	}
	if entry.Generation != generation {
		return nil
	}
	return entry.Spots
}

// StoreForDate caches a date/time query result stamped with the
// snapshot generation it was computed from.
func (c *SpotsCache) StoreForDate(ctx context.Context, date, timeOfDay string, generation uint64, spots []types.ForecastRecord) {
	raw, err := json.Marshal(datedEntry{Generation: generation, Spots: spots})
	if err != nil {
		return
	}
	c.client.set(ctx, datedKey(date, timeOfDay), string(raw), c.ttlDated)
}

// GetLatest returns the per-location "nearest upcoming" projection
// written by the ingestion pipeline, or nil on a miss.
func (c *SpotsCache) GetLatest(ctx context.Context, locationID string) *types.ForecastRecord {
	raw, ok := c.client.get(ctx, keyLatestPrefix+locationID)
	if !ok {
		return nil
	}
	var rec types.ForecastRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}
	return &rec
}

// StoreLatestBatch writes the nearest-upcoming projection for many
// locations in one pipeline. Returns the number of entries written.
func (c *SpotsCache) StoreLatestBatch(ctx context.Context, latest map[string]types.ForecastRecord) int {
	entries := make(map[string]string, len(latest))
	for locationID, rec := range latest {
		raw, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		entries[keyLatestPrefix+locationID] = string(raw)
	}
	return c.client.setBatch(ctx, entries, c.ttlLatest)
}

func datedKey(date, timeOfDay string) string {
	return keySpotsPrefix + date + ":" + timeOfDay
}
