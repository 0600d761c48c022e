// Package spots implements the forecast query engine: date-indexed
// lookup with nearest-time selection, tiered cache sourcing, distance
// ranking, and location-metadata enrichment.
//
// Sourcing order for aggregate queries is distributed cache, then the
// in-process snapshot, then the store itself (bounded fan-out). Both
// cache tiers are optimizations; every path degrades to the store.
package spots

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"awaves/internal/types"
)

// FanOutLimit caps concurrent store queries on the latest-per-location
// fallback path.
const FanOutLimit = 20

// ForecastSource is the store surface the query engine reads from.
type ForecastSource interface {
	QueryLocation(ctx context.Context, locationID, datePrefix string) ([]types.ForecastRecord, error)
	QueryLatest(ctx context.Context, locationID string) (*types.ForecastRecord, error)
}

// LocationDirectory resolves location identities to display metadata.
type LocationDirectory interface {
	AllLocationIDs(ctx context.Context) ([]string, error)
	BatchGet(ctx context.Context, ids []string) (map[string]types.LocationMeta, error)
}

// SnapshotCache is the in-process full-dataset tier.
type SnapshotCache interface {
	Get(ctx context.Context) ([]types.ForecastRecord, error)
	GetByDate(ctx context.Context, date string) ([]types.ForecastRecord, error)
	Generation() uint64
	Refresh(ctx context.Context) error
}

// ResultCache is the distributed tier holding pre-aggregated results.
type ResultCache interface {
	GetAllSpots(ctx context.Context) []types.ForecastRecord
	StoreAllSpots(ctx context.Context, spots []types.ForecastRecord)
	InvalidateAllSpots(ctx context.Context)
	GetForDate(ctx context.Context, date, timeOfDay string, generation uint64) []types.ForecastRecord
	StoreForDate(ctx context.Context, date, timeOfDay string, generation uint64, spots []types.ForecastRecord)
}

// Service is the concrete query engine.
type Service struct {
	source    ForecastSource
	locations LocationDirectory
	snapshot  SnapshotCache
	results   ResultCache
	logger    *slog.Logger
}

// NewService creates a query engine with the provided tiers.
func NewService(
	source ForecastSource,
	locations LocationDirectory,
	snapshot SnapshotCache,
	results ResultCache,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:    source,
		locations: locations,
		snapshot:  snapshot,
		results:   results,
		logger:    logger,
	}
}

// SpotsForDate returns one record per location for the given date,
// optionally biased toward a time of day ("HH:mm"). An empty date
// yields the latest-per-location global view.
func (s *Service) SpotsForDate(ctx context.Context, date, timeOfDay string) ([]types.ForecastRecord, error) {
	if date == "" {
		return s.allSpots(ctx)
	}

	// GetByDate refreshes a stale snapshot first, so the generation read
	// below is the one the records belong to.
	records, err := s.snapshot.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	generation := s.snapshot.Generation()

	if cached := s.results.GetForDate(ctx, date, timeOfDay, generation); cached != nil {
		return cached, nil
	}

	if len(records) == 0 {
		return []types.ForecastRecord{}, nil
	}

	if timeOfDay != "" {
		records = filterTimeWindow(records, date, timeOfDay)
	}

	spots := reducePerLocation(records, timeOfDay)
	sortByIntermediateScore(spots)
	spots = s.enrich(ctx, spots)

	s.results.StoreForDate(ctx, date, timeOfDay, generation, spots)
	return spots, nil
}

// SpotData returns the full forecast series for one location, optionally
// narrowed by a "YYYY-MM-DD" date prefix. Single-location queries are
// cheap, so the result is not cached.
func (s *Service) SpotData(ctx context.Context, locationID, date string) ([]types.ForecastRecord, error) {
	if locationID == "" {
		return nil, &types.AppError{
			Code:    types.ErrCodeValidationInvalidLocation,
			Message: "location id must not be empty",
		}
	}

	records, err := s.source.QueryLocation(ctx, locationID, date)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, records), nil
}

// NearbySpots ranks the date/time view by great-circle distance from
// (lat, lng) and truncates to limit.
func (s *Service) NearbySpots(ctx context.Context, lat, lng float64, limit int, date, timeOfDay string) ([]types.ForecastRecord, error) {
	spots, err := s.SpotsForDate(ctx, date, timeOfDay)
	if err != nil {
		return nil, err
	}

	ranked := make([]types.ForecastRecord, len(spots))
	for i, spot := range spots {
		d := roundTo2(haversineKm(lat, lng, spot.Geo.Lat, spot.Geo.Lng))
		spot.Distance = &d
		ranked[i] = spot
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Distance < *ranked[j].Distance
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Search filters the date/time view by case-insensitive substring match
// on the coordinate identity. Intentionally crude: real text search
// lives in the external search collaborator.
func (s *Service) Search(ctx context.Context, query, date, timeOfDay string) ([]types.ForecastRecord, error) {
	spots, err := s.SpotsForDate(ctx, date, timeOfDay)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matched := make([]types.ForecastRecord, 0, len(spots))
	for _, spot := range spots {
		if strings.Contains(strings.ToLower(spot.LocationID), q) {
			matched = append(matched, spot)
		}
	}
	return matched, nil
}

// WarmCaches refreshes the snapshot and repopulates the all-spots view.
// Called at process startup and after every ingestion run.
func (s *Service) WarmCaches(ctx context.Context) error {
	if err := s.snapshot.Refresh(ctx); err != nil {
		return err
	}
	s.results.InvalidateAllSpots(ctx)
	_, err := s.allSpots(ctx)
	return err
}

// allSpots produces the latest-per-location global view, preferring the
// distributed cache, then the snapshot, then a bounded fan-out of
// per-location store queries.
func (s *Service) allSpots(ctx context.Context) ([]types.ForecastRecord, error) {
	if cached := s.results.GetAllSpots(ctx); cached != nil {
		return cached, nil
	}

	var latest []types.ForecastRecord
	records, err := s.snapshot.Get(ctx)
	if err == nil {
		latest = reducePerLocation(records, "")
	} else {
		s.logger.WarnContext(ctx, "snapshot unavailable, falling back to per-location queries", "error", err)
		latest, err = s.fanOutLatest(ctx)
		if err != nil {
			return nil, err
		}
	}

	sortByIntermediateScore(latest)
	latest = s.enrich(ctx, latest)

	s.results.StoreAllSpots(ctx, latest)
	return latest, nil
}

// fanOutLatest queries the most recent record of every known location
// concurrently, at most FanOutLimit store calls in flight. Per-location
// failures are logged and skipped; order is not significant until the
// final sort.
func (s *Service) fanOutLatest(ctx context.Context) ([]types.ForecastRecord, error) {
	ids, err := s.locations.AllLocationIDs(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	latest := make([]types.ForecastRecord, 0, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(FanOutLimit)

	for _, id := range ids {
		g.Go(func() error {
			rec, err := s.source.QueryLatest(gCtx, id)
			if err != nil {
				s.logger.WarnContext(gCtx, "latest query failed", "location_id", id, "error", err)
				return nil
			}
			if rec == nil {
				return nil
			}
			mu.Lock()
			latest = append(latest, *rec)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return latest, nil
}

// filterTimeWindow keeps records whose timestamp hour falls inside the
// 3-hour forward window {H, H+1, H+2} clipped at 23:00. When the window
// matches nothing the unfiltered set is returned: an overly strict time
// filter must never empty a date that has data.
func filterTimeWindow(records []types.ForecastRecord, date, timeOfDay string) []types.ForecastRecord {
	startHour, err := strconv.Atoi(strings.SplitN(timeOfDay, ":", 2)[0])
	if err != nil {
		return records
	}

	prefixes := make([]string, 0, 3)
	for offset := 0; offset < 3; offset++ {
		if hour := startHour + offset; hour <= 23 {
			prefixes = append(prefixes, fmt.Sprintf("%sT%02d:", date, hour))
		}
	}

	matched := make([]types.ForecastRecord, 0, len(records))
	for _, rec := range records {
		for _, prefix := range prefixes {
			if strings.HasPrefix(rec.SurfTimestamp, prefix) {
				matched = append(matched, rec)
				break
			}
		}
	}

	if len(matched) == 0 {
		return records
	}
	return matched
}

// reducePerLocation keeps one record per location. With a target time,
// the record whose time of day is closest wins (first seen on ties);
// without one, the lexicographically latest timestamp wins.
func reducePerLocation(records []types.ForecastRecord, timeOfDay string) []types.ForecastRecord {
	target, hasTarget := minutesOfDay(timeOfDay)

	byLocation := make(map[string]types.ForecastRecord)
	order := make([]string, 0, len(records))

	for _, rec := range records {
		existing, seen := byLocation[rec.LocationID]
		if !seen {
			byLocation[rec.LocationID] = rec
			order = append(order, rec.LocationID)
			continue
		}

		if hasTarget && timeOfDay != "" {
			recMin, okA := minutesOfDay(timestampTime(rec.SurfTimestamp))
			exMin, okB := minutesOfDay(timestampTime(existing.SurfTimestamp))
			if okA && okB && absInt(recMin-target) < absInt(exMin-target) {
				byLocation[rec.LocationID] = rec
			}
		} else if rec.SurfTimestamp > existing.SurfTimestamp {
			byLocation[rec.LocationID] = rec
		}
	}

	out := make([]types.ForecastRecord, 0, len(byLocation))
	for _, id := range order {
		out = append(out, byLocation[id])
	}
	return out
}

// sortByIntermediateScore orders spots descending by the INTERMEDIATE
// surf score. The sort is stable so equal scores keep their original
// order.
func sortByIntermediateScore(spots []types.ForecastRecord) {
	sort.SliceStable(spots, func(i, j int) bool {
		return spots[i].Score(types.LevelIntermediate) > spots[j].Score(types.LevelIntermediate)
	})
}

// timestampTime extracts "HH:mm" from an ISO-8601 timestamp.
func timestampTime(ts string) string {
	if len(ts) >= 16 {
		return ts[11:16]
	}
	if len(ts) > 11 {
		return ts[11:]
	}
	return ""
}

// minutesOfDay parses "HH:mm" into minutes since midnight. Comparing in
// minutes keeps closeness correct across hour boundaries (05:58 is two
// minutes from 06:00, not forty-two).
func minutesOfDay(hhmm string) (int, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
