package ingest

import (
	"context"
	"log/slog"
	"math"

	"awaves/internal/store"
	"awaves/internal/types"
)

// changeEpsilon is the significance threshold for tracked metrics.
// Differences at or below it are model noise, not changes.
const changeEpsilon = 0.001

// SavedSelections is the saved-list surface change detection needs.
type SavedSelections interface {
	ScanByLocation(ctx context.Context, locationID string) ([]types.SavedSelection, error)
	FlagChange(ctx context.Context, userID, sortKey string, upd store.SelectionUpdate) error
}

// SavedInvalidator evicts users' cached saved-item lists.
type SavedInvalidator interface {
	InvalidateMany(ctx context.Context, userIDs []string)
}

// ChangeDetector compares freshly ingested forecasts against the metric
// copies held on saved selections, flags the ones that moved, and
// evicts the affected users' cache entries.
//
// Everything here is best-effort: a failure never rolls back the
// forecast write that triggered it.
type ChangeDetector struct {
	saved  SavedSelections
	cache  SavedInvalidator
	logger *slog.Logger
}

// NewChangeDetector creates a change detector.
func NewChangeDetector(saved SavedSelections, cache SavedInvalidator, logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeDetector{saved: saved, cache: cache, logger: logger}
}

// Detect checks every saved selection at each updated location against
// the new forecast and flags significant changes. Returns the number of
// selections flagged.
func (d *ChangeDetector) Detect(ctx context.Context, latest map[string]types.ForecastRecord) int {
	flagged := 0
	affected := make(map[string]struct{})

	for locationID, rec := range latest {
		selections, err := d.saved.ScanByLocation(ctx, locationID)
		if err != nil {
			d.logger.WarnContext(ctx, "saved-selection scan failed", "location_id", locationID, "error", err)
			continue
		}

		for _, sel := range selections {
			if sel.UserID == "" || sel.SortKey == "" {
				continue
			}

			upd, changes := diffSelection(sel, rec)
			if len(changes) == 0 {
				continue
			}
			upd.ChangeMessage = types.ChangeSet{Changes: changes}.Encode()

			if err := d.saved.FlagChange(ctx, sel.UserID, sel.SortKey, upd); err != nil {
				d.logger.WarnContext(ctx, "failed to flag selection",
					"user_id", sel.UserID, "sort_key", sel.SortKey, "error", err)
				continue
			}
			flagged++
			affected[sel.UserID] = struct{}{}
		}
	}

	if len(affected) > 0 {
		userIDs := make([]string, 0, len(affected))
		for userID := range affected {
			userIDs = append(userIDs, userID)
		}
		d.cache.InvalidateMany(ctx, userIDs)
		d.logger.InfoContext(ctx, "saved-selection changes flagged",
			"flagged", flagged, "users_evicted", len(userIDs))
	}

	return flagged
}

// diffSelection compares the selection's metric copy against the new
// forecast. The selection's surfer level maps 1:1 onto the record's
// derived metrics, falling back to BEGINNER for unknown levels.
func diffSelection(sel types.SavedSelection, rec types.ForecastRecord) (store.SelectionUpdate, []types.FieldChange) {
	level := sel.SurferLevel
	if !level.Valid() {
		level = types.LevelBeginner
	}
	metrics := rec.DerivedMetric[level]

	upd := store.SelectionUpdate{
		SurfScore:        metrics.SurfScore,
		SurfGrade:        metrics.SurfGrade,
		WaveHeight:       rec.Conditions.WaveHeight,
		WavePeriod:       rec.Conditions.WavePeriod,
		WindSpeed:        rec.Conditions.WindSpeed,
		WaterTemperature: rec.Conditions.WaterTemperature,
	}

	var changes []types.FieldChange
	appendChange := func(field string, old *float64, next float64) {
		if old == nil || !significant(*old, next) {
			return
		}
		changes = append(changes, types.FieldChange{
			Field: field,
			Old:   round2(*old),
			New:   round2(next),
		})
	}

	appendChange("surfScore", &sel.SurfScore, metrics.SurfScore)
	appendChange("waveHeight", sel.WaveHeight, rec.Conditions.WaveHeight)
	appendChange("wavePeriod", sel.WavePeriod, rec.Conditions.WavePeriod)
	appendChange("windSpeed", sel.WindSpeed, rec.Conditions.WindSpeed)
	appendChange("waterTemperature", sel.WaterTemperature, rec.Conditions.WaterTemperature)

	return upd, changes
}

func significant(old, next float64) bool {
	return math.Abs(next-old) > changeEpsilon
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
