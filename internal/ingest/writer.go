package ingest

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"awaves/internal/types"
)

// Inference output CSV columns (one row per location/hour).
const (
	colLocationID = "location_id"
	colDatetime   = "datetime"
	colScoreAdv   = "y_pred_adv"
	colScoreInt   = "y_pred_int"
	colScoreBeg   = "y_pred_beg"
	colWaveHeight = "wave_height"
	colWavePeriod = "wave_period"
	colWindSpeed  = "wind_speed_10m"
	colWaterTemp  = "sea_surface_temperature"
)

// Ingest run statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// ForecastWriter is the store surface the pipeline writes through.
type ForecastWriter interface {
	BatchPut(ctx context.Context, records []types.ForecastRecord) (int, error)
}

// LatestProjector receives the per-location nearest-upcoming projection.
type LatestProjector interface {
	StoreLatestBatch(ctx context.Context, latest map[string]types.ForecastRecord) int
}

// Writer turns one inference batch into persisted forecast records plus
// the nearest-upcoming cache projection.
type Writer struct {
	reader       *Reader
	store        ForecastWriter
	cache        LatestProjector
	clock        types.Clock
	logger       *slog.Logger
	modelVersion string
}

// NewWriter creates an ingestion writer.
func NewWriter(reader *Reader, store ForecastWriter, cache LatestProjector, clock types.Clock, logger *slog.Logger, modelVersion string) *Writer {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		reader:       reader,
		store:        store,
		cache:        cache,
		clock:        clock,
		logger:       logger,
		modelVersion: modelVersion,
	}
}

// Run processes every inference file under the prefix. Malformed rows
// are counted and skipped, never fatal; an empty prefix yields status
// "error". The returned map is the nearest-upcoming record per location,
// for downstream change detection.
func (w *Writer) Run(ctx context.Context, inferencePrefix string) (types.IngestSummary, map[string]types.ForecastRecord, error) {
	summary := types.IngestSummary{Status: StatusError, InferencePrefix: inferencePrefix}

	keys, err := w.reader.ListBatchFiles(ctx, inferencePrefix)
	if err != nil {
		return summary, nil, err
	}
	if len(keys) == 0 {
		w.logger.WarnContext(ctx, "no inference files found", "prefix", inferencePrefix)
		// Returned as an error so a queued run is redelivered: the batch
		// may simply not have landed in the data lake yet.
		return summary, nil, &types.AppError{
			Code:    types.ErrCodeIngestEmptyBatch,
			Message: "no inference files under " + inferencePrefix,
		}
	}
	summary.FilesProcessed = len(keys)

	now := w.clock.Now()
	createdAt := now.UTC().Format("2006-01-02T15:04:05Z")

	var records []types.ForecastRecord
	latest := make(map[string]types.ForecastRecord)
	latestAt := make(map[string]time.Time)

	for _, key := range keys {
		rows, err := w.reader.ReadRows(ctx, key)
		if err != nil {
			w.logger.WarnContext(ctx, "failed to read inference file", "key", key, "error", err)
			summary.Errors++
			continue
		}

		for _, row := range rows {
			rec, ok := w.parseRow(row, createdAt)
			if !ok {
				summary.Errors++
				continue
			}
			records = append(records, rec)
			w.trackUpcoming(rec, now, latest, latestAt)
		}
	}

	written, err := w.store.BatchPut(ctx, records)
	summary.Written = written
	if err != nil {
		w.logger.WarnContext(ctx, "forecast batch write failed", "written", written, "error", err)
		summary.Errors += len(records) - written
	}

	summary.CacheWritten = w.cache.StoreLatestBatch(ctx, latest)

	switch {
	case summary.Written == 0:
		summary.Status = StatusError
	case summary.Errors > 0:
		summary.Status = StatusPartial
	default:
		summary.Status = StatusSuccess
	}

	w.logger.InfoContext(ctx, "ingest write complete",
		"prefix", inferencePrefix,
		"files", summary.FilesProcessed,
		"written", summary.Written,
		"errors", summary.Errors,
		"cache_written", summary.CacheWritten,
	)
	return summary, latest, nil
}

// parseRow converts one CSV row into a forecast record. A row without a
// location, timestamp, or advanced score is malformed.
func (w *Writer) parseRow(row Row, createdAt string) (types.ForecastRecord, bool) {
	locationID := row[colLocationID]
	ts := row[colDatetime]
	if locationID == "" || ts == "" || row[colScoreAdv] == "" {
		return types.ForecastRecord{}, false
	}

	lat, lng, err := types.ParseLocationID(locationID)
	if err != nil {
		return types.ForecastRecord{}, false
	}

	return types.ForecastRecord{
		LocationID:    locationID,
		SurfTimestamp: ts,
		ExpiredAt:     types.ExpiredAtEpoch(ts),
		Geo:           types.GeoPoint{Lat: lat, Lng: lng},
		Conditions: types.Conditions{
			WaveHeight:       round4(parseFloat(row[colWaveHeight])),
			WavePeriod:       round4(parseFloat(row[colWavePeriod])),
			WindSpeed:        round4(parseFloat(row[colWindSpeed])),
			WaterTemperature: round4(parseFloat(row[colWaterTemp])),
		},
		DerivedMetric: map[types.SurferLevel]types.LevelMetrics{
			types.LevelBeginner:     levelMetrics(row[colScoreBeg]),
			types.LevelIntermediate: levelMetrics(row[colScoreInt]),
			types.LevelAdvanced:     levelMetrics(row[colScoreAdv]),
		},
		Metadata: types.Metadata{
			ModelVersion:   w.modelVersion,
			DataSource:     "open-meteo",
			PredictionType: "FORECAST",
			CreatedAt:      createdAt,
		},
	}, true
}

// trackUpcoming keeps, per location, the record whose timestamp is the
// earliest one not in the past. That record becomes the cache's
// "latest" projection and the baseline for change detection.
func (w *Writer) trackUpcoming(rec types.ForecastRecord, now time.Time, latest map[string]types.ForecastRecord, latestAt map[string]time.Time) {
	ts, err := time.Parse(time.RFC3339, rec.SurfTimestamp)
	if err != nil || ts.Before(now) {
		return
	}
	if prev, ok := latestAt[rec.LocationID]; ok && !ts.Before(prev) {
		return
	}

	rec.Metadata.CacheSource = "SURF_LATEST"
	latest[rec.LocationID] = rec
	latestAt[rec.LocationID] = ts
}

// ingestGrade is the write-side letter grade for a 0-100 model score.
// Distinct from the read-side numeric-grade table, which maps legacy
// stored values on a 0-4 scale.
func ingestGrade(raw string) string {
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "F"
	}
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	}
	return "F"
}

func levelMetrics(raw string) types.LevelMetrics {
	return types.LevelMetrics{
		SurfScore: round4(parseFloat(raw)),
		SurfGrade: ingestGrade(raw),
	}
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
