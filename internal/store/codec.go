package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"awaves/internal/types"
)

// forecastItem is the persisted shape of a surf_info row. DerivedMetrics
// is decoded loosely because two generations of the schema coexist: the
// current per-level map and a legacy flat {surfScore, surfGrade} object.
type forecastItem struct {
	LocationID     string           `dynamodbav:"locationId"`
	SurfTimestamp  string           `dynamodbav:"surfTimestamp"`
	ExpiredAt      int64            `dynamodbav:"expiredAt,omitempty"`
	Geo            types.GeoPoint   `dynamodbav:"geo"`
	Conditions     types.Conditions `dynamodbav:"conditions"`
	DerivedMetrics map[string]any   `dynamodbav:"derivedMetrics"`
	Metadata       types.Metadata   `dynamodbav:"metadata"`
	Location       *locationAttr    `dynamodbav:"location,omitempty"`
}

// locationAttr is the optional display metadata denormalized onto some
// surf_info rows by earlier loaders.
type locationAttr struct {
	DisplayName   string `dynamodbav:"displayName"`
	City          string `dynamodbav:"city"`
	State         string `dynamodbav:"state"`
	Country       string `dynamodbav:"country"`
	DisplayNameKo string `dynamodbav:"displayNameKo"`
	CityKo        string `dynamodbav:"cityKo"`
	StateKo       string `dynamodbav:"stateKo"`
	CountryKo     string `dynamodbav:"countryKo"`
}

// persistedMetrics is the write-side shape: always per-level.
type persistedMetrics struct {
	SurfScore float64 `dynamodbav:"surfScore"`
	SurfGrade string  `dynamodbav:"surfGrade"`
}

// encodeRecord marshals a forecast record into its DynamoDB item form.
// Enrichment fields are query-layer state and are never persisted.
func encodeRecord(rec types.ForecastRecord) (map[string]ddbtypes.AttributeValue, error) {
	derived := make(map[string]persistedMetrics, len(rec.DerivedMetric))
	for level, m := range rec.DerivedMetric {
		derived[string(level)] = persistedMetrics{SurfScore: m.SurfScore, SurfGrade: m.SurfGrade}
	}

	item := struct {
		LocationID     string                      `dynamodbav:"locationId"`
		SurfTimestamp  string                      `dynamodbav:"surfTimestamp"`
		ExpiredAt      int64                       `dynamodbav:"expiredAt,omitempty"`
		Geo            types.GeoPoint              `dynamodbav:"geo"`
		Conditions     types.Conditions            `dynamodbav:"conditions"`
		DerivedMetrics map[string]persistedMetrics `dynamodbav:"derivedMetrics"`
		Metadata       types.Metadata              `dynamodbav:"metadata"`
	}{
		LocationID:     rec.LocationID,
		SurfTimestamp:  rec.SurfTimestamp,
		ExpiredAt:      rec.ExpiredAt,
		Geo:            rec.Geo,
		Conditions:     rec.Conditions,
		DerivedMetrics: derived,
		Metadata:       rec.Metadata,
	}

	return attributevalue.MarshalMap(item)
}

// decodeRecord unmarshals a DynamoDB item into a forecast record,
// normalizing both derived-metric generations into the per-level form
// and converting stored grades to letters via the grade table.
func decodeRecord(item map[string]ddbtypes.AttributeValue, grades types.GradeTable) (types.ForecastRecord, error) {
	var raw forecastItem
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return types.ForecastRecord{}, err
	}

	rec := types.ForecastRecord{
		LocationID:    raw.LocationID,
		SurfTimestamp: raw.SurfTimestamp,
		ExpiredAt:     raw.ExpiredAt,
		Geo:           raw.Geo,
		Conditions:    raw.Conditions,
		Metadata:      raw.Metadata,
		DerivedMetric: normalizeMetrics(raw.DerivedMetrics, grades),
	}

	// Geo is derived from the location identity when the stored
	// attribute is absent.
	if rec.Geo.Lat == 0 && rec.Geo.Lng == 0 {
		if lat, lng, err := types.ParseLocationID(raw.LocationID); err == nil {
			rec.Geo = types.GeoPoint{Lat: lat, Lng: lng}
		}
	}

	if loc := raw.Location; loc != nil {
		rec.Name = loc.DisplayName
		rec.Address = loc.DisplayName
		rec.City = loc.City
		rec.Region = loc.State
		rec.Country = loc.Country
		rec.NameKo = loc.DisplayNameKo
		rec.AddressKo = loc.DisplayNameKo
		rec.CityKo = loc.CityKo
		rec.RegionKo = loc.StateKo
		rec.CountryKo = loc.CountryKo
	}

	return rec, nil
}

// normalizeMetrics converts either derived-metric generation into the
// per-level map. The legacy flat form applies its single score/grade to
// all three levels.
func normalizeMetrics(raw map[string]any, grades types.GradeTable) map[types.SurferLevel]types.LevelMetrics {
	out := make(map[types.SurferLevel]types.LevelMetrics, len(types.AllLevels))

	for _, level := range types.AllLevels {
		nested, ok := raw[string(level)].(map[string]any)
		if !ok {
			continue
		}
		out[level] = levelMetrics(nested, grades)
	}
	if len(out) > 0 {
		return out
	}

	// Legacy flat shape: one score/grade for every level.
	flat := levelMetrics(raw, grades)
	for _, level := range types.AllLevels {
		out[level] = flat
	}
	return out
}

func levelMetrics(m map[string]any, grades types.GradeTable) types.LevelMetrics {
	score, _ := m["surfScore"].(float64)

	// Grades were stored as numbers in the legacy schema and as letter
	// strings in the current one.
	var rawGrade string
	switch g := m["surfGrade"].(type) {
	case string:
		rawGrade = g
	case float64:
		rawGrade = strconv.FormatFloat(g, 'f', -1, 64)
	}
	if rawGrade == "" {
		rawGrade = grades.Floor
	}
	return types.LevelMetrics{
		SurfScore:        score,
		SurfGrade:        grades.Letter(rawGrade),
		SurfGradeNumeric: grades.Numeric(rawGrade),
	}
}
