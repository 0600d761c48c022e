// Package types defines the canonical domain model for the awaves surf
// forecast platform: forecast records, saved selections, surfer levels,
// and the shared error and clock abstractions used by every component.
//
// JSON tags mirror the persisted DynamoDB item shape (camelCase), so a
// record can round-trip through the store, the distributed cache, and the
// API without translation layers.
package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SurferLevel identifies which skill band a score or grade applies to.
type SurferLevel string

const (
	LevelBeginner     SurferLevel = "BEGINNER"
	LevelIntermediate SurferLevel = "INTERMEDIATE"
	LevelAdvanced     SurferLevel = "ADVANCED"
)

// AllLevels lists the supported surfer levels in canonical order.
var AllLevels = []SurferLevel{LevelBeginner, LevelIntermediate, LevelAdvanced}

// Valid reports whether the level is one of the three supported bands.
func (l SurferLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// GeoPoint holds the coordinates of a forecast location.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Conditions holds the physical measurements attached to a forecast.
type Conditions struct {
	WaveHeight       float64 `json:"waveHeight"`
	WavePeriod       float64 `json:"wavePeriod"`
	WindSpeed        float64 `json:"windSpeed"`
	WaterTemperature float64 `json:"waterTemperature"`
}

// LevelMetrics is the per-level derived scoring of a forecast record.
// SurfGrade is the letter form served to clients; SurfGradeNumeric keeps
// the raw numeric grade when the stored value was numeric (0 otherwise).
type LevelMetrics struct {
	SurfScore        float64 `json:"surfScore"`
	SurfGrade        string  `json:"surfGrade"`
	SurfGradeNumeric float64 `json:"surfGradeNumeric,omitempty"`
}

// Metadata records the provenance of a forecast record. Immutable once
// written.
type Metadata struct {
	ModelVersion   string `json:"modelVersion"`
	DataSource     string `json:"dataSource"`
	PredictionType string `json:"predictionType"`
	CreatedAt      string `json:"createdAt"`
	CacheSource    string `json:"cacheSource,omitempty"`
}

// ForecastRecord is one forecast snapshot for a location at a specific
// time. The (LocationID, SurfTimestamp) pair is the store's primary key.
//
// The enrichment fields (Name through Distance) are populated by the
// query layer from location metadata and are never written back to the
// forecast table.
type ForecastRecord struct {
	LocationID    string                       `json:"locationId"`
	SurfTimestamp string                       `json:"surfTimestamp"`
	ExpiredAt     int64                        `json:"expiredAt,omitempty"`
	Geo           GeoPoint                     `json:"geo"`
	Conditions    Conditions                   `json:"conditions"`
	DerivedMetric map[SurferLevel]LevelMetrics `json:"derivedMetrics"`
	Metadata      Metadata                     `json:"metadata"`

	// Enrichment (query layer only).
	Name      string   `json:"name,omitempty"`
	NameKo    string   `json:"nameKo,omitempty"`
	City      string   `json:"city,omitempty"`
	CityKo    string   `json:"cityKo,omitempty"`
	Region    string   `json:"region,omitempty"`
	RegionKo  string   `json:"regionKo,omitempty"`
	Country   string   `json:"country,omitempty"`
	CountryKo string   `json:"countryKo,omitempty"`
	Address   string   `json:"address,omitempty"`
	AddressKo string   `json:"addressKo,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

// ParseLocationID splits a "{lat}#{lng}" location identity into its
// coordinates. Returns an error when the identity is not two parseable
// floats joined by '#'.
func ParseLocationID(locationID string) (lat, lng float64, err error) {
	parts := strings.SplitN(locationID, "#", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("location id %q is not lat#lng", locationID)
	}
	lat, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("location id %q: bad latitude: %w", locationID, err)
	}
	lng, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("location id %q: bad longitude: %w", locationID, err)
	}
	return lat, lng, nil
}

// SurfDate returns the "YYYY-MM-DD" prefix of the record's timestamp.
func (r *ForecastRecord) SurfDate() string {
	if len(r.SurfTimestamp) < 10 {
		return r.SurfTimestamp
	}
	return r.SurfTimestamp[:10]
}

// Score returns the surf score for the given level, or 0 when the level
// is absent from the derived metrics.
func (r *ForecastRecord) Score(level SurferLevel) float64 {
	if m, ok := r.DerivedMetric[level]; ok {
		return m.SurfScore
	}
	return 0
}

// ExpireAfter is the window a forecast record stays live in the store
// past its own surf timestamp. Enforced by the store's TTL attribute,
// not by application code.
const ExpireAfter = 9 * time.Hour

// ExpiredAtEpoch computes the TTL attribute for a surf timestamp:
// timestamp + 9h as Unix epoch seconds. Returns 0 when the timestamp is
// unparseable (item then simply never expires).
func ExpiredAtEpoch(surfTimestamp string) int64 {
	ts, err := time.Parse(time.RFC3339, surfTimestamp)
	if err != nil {
		return 0
	}
	return ts.Add(ExpireAfter).Unix()
}

// LocationMeta is the display metadata for a location, as served by the
// locations table. Korean variants mirror the English fields.
type LocationMeta struct {
	LocationID  string `json:"locationId"`
	DisplayName string `json:"displayName"`
	City        string `json:"city"`
	Region      string `json:"state"`
	Country     string `json:"country"`
	NameKo      string `json:"displayNameKo"`
	CityKo      string `json:"cityKo"`
	RegionKo    string `json:"stateKo"`
	CountryKo   string `json:"countryKo"`
}

// IngestSummary is the result of one ingestion run.
type IngestSummary struct {
	Status          string `json:"status"` // success | partial | error
	InferencePrefix string `json:"inference_prefix"`
	FilesProcessed  int    `json:"files_processed"`
	Written         int    `json:"written"`
	Errors          int    `json:"errors"`
	CacheWritten    int    `json:"cache_written"`
	SavedFlagged    int    `json:"saved_flagged"`
}
