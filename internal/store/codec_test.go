package store

import (
	"testing"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"awaves/internal/types"
)

func testGrades() types.GradeTable { return types.DefaultGradeTable() }

func sampleRecord() types.ForecastRecord {
	return types.ForecastRecord{
		LocationID:    "35.1#129.1",
		SurfTimestamp: "2026-03-01T06:00:00Z",
		ExpiredAt:     1772380800,
		Geo:           types.GeoPoint{Lat: 35.1, Lng: 129.1},
		Conditions: types.Conditions{
			WaveHeight:       1.2,
			WavePeriod:       8.5,
			WindSpeed:        3.1,
			WaterTemperature: 14.2,
		},
		DerivedMetric: map[types.SurferLevel]types.LevelMetrics{
			types.LevelBeginner:     {SurfScore: 45, SurfGrade: "C"},
			types.LevelIntermediate: {SurfScore: 65, SurfGrade: "B"},
			types.LevelAdvanced:     {SurfScore: 85, SurfGrade: "A"},
		},
		Metadata: types.Metadata{
			ModelVersion:   "awaves-v1",
			DataSource:     "open-meteo",
			PredictionType: "FORECAST",
			CreatedAt:      "2026-03-01T05:00:00Z",
		},
		// Enrichment state must never reach the table.
		Name:     "Songjeong Beach",
		Distance: func() *float64 { d := 1.5; return &d }(),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	item, err := encodeRecord(sampleRecord())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok := item["name"]; ok {
		t.Error("enrichment field persisted")
	}
	if _, ok := item["distance"]; ok {
		t.Error("distance field persisted")
	}

	rec, err := decodeRecord(item, testGrades())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.LocationID != "35.1#129.1" || rec.SurfTimestamp != "2026-03-01T06:00:00Z" {
		t.Errorf("key mismatch: %s/%s", rec.LocationID, rec.SurfTimestamp)
	}
	if rec.ExpiredAt != 1772380800 {
		t.Errorf("expiredAt = %d", rec.ExpiredAt)
	}
	if rec.Conditions.WaveHeight != 1.2 {
		t.Errorf("waveHeight = %v", rec.Conditions.WaveHeight)
	}
	if m := rec.DerivedMetric[types.LevelIntermediate]; m.SurfScore != 65 || m.SurfGrade != "B" {
		t.Errorf("intermediate metrics = %+v", m)
	}
	if rec.Name != "" {
		t.Errorf("enrichment leaked through the store: %q", rec.Name)
	}
}

func TestDecodeLegacyFlatMetrics(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{
		"locationId":    &ddbtypes.AttributeValueMemberS{Value: "35.1#129.1"},
		"surfTimestamp": &ddbtypes.AttributeValueMemberS{Value: "2026-03-01T06:00:00Z"},
		"derivedMetrics": &ddbtypes.AttributeValueMemberM{
			Value: map[string]ddbtypes.AttributeValue{
				"surfScore": &ddbtypes.AttributeValueMemberN{Value: "2.7"},
				"surfGrade": &ddbtypes.AttributeValueMemberN{Value: "2.7"},
			},
		},
	}

	rec, err := decodeRecord(item, testGrades())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// The single flat score/grade applies to every level, and the
	// numeric grade maps through the threshold table.
	for _, level := range types.AllLevels {
		m, ok := rec.DerivedMetric[level]
		if !ok {
			t.Fatalf("level %s missing", level)
		}
		if m.SurfScore != 2.7 {
			t.Errorf("%s score = %v", level, m.SurfScore)
		}
		if m.SurfGrade != "A" {
			t.Errorf("%s grade = %s, want A (2.7 >= 2.5)", level, m.SurfGrade)
		}
		if m.SurfGradeNumeric != 2.7 {
			t.Errorf("%s numeric grade = %v", level, m.SurfGradeNumeric)
		}
	}
}

func TestDecodeDerivesGeoFromLocationID(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{
		"locationId":    &ddbtypes.AttributeValueMemberS{Value: "35.1#129.1"},
		"surfTimestamp": &ddbtypes.AttributeValueMemberS{Value: "2026-03-01T06:00:00Z"},
		"derivedMetrics": &ddbtypes.AttributeValueMemberM{
			Value: map[string]ddbtypes.AttributeValue{},
		},
	}

	rec, err := decodeRecord(item, testGrades())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Geo.Lat != 35.1 || rec.Geo.Lng != 129.1 {
		t.Errorf("geo not derived from identity: %+v", rec.Geo)
	}
}

func TestDecodeDenormalizedLocation(t *testing.T) {
	item := map[string]ddbtypes.AttributeValue{
		"locationId":    &ddbtypes.AttributeValueMemberS{Value: "35.1#129.1"},
		"surfTimestamp": &ddbtypes.AttributeValueMemberS{Value: "2026-03-01T06:00:00Z"},
		"derivedMetrics": &ddbtypes.AttributeValueMemberM{
			Value: map[string]ddbtypes.AttributeValue{},
		},
		"location": &ddbtypes.AttributeValueMemberM{
			Value: map[string]ddbtypes.AttributeValue{
				"displayName":   &ddbtypes.AttributeValueMemberS{Value: "Songjeong Beach"},
				"city":          &ddbtypes.AttributeValueMemberS{Value: "Busan"},
				"displayNameKo": &ddbtypes.AttributeValueMemberS{Value: "송정해수욕장"},
			},
		},
	}

	rec, err := decodeRecord(item, testGrades())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Name != "Songjeong Beach" || rec.City != "Busan" {
		t.Errorf("denormalized location not applied: %q %q", rec.Name, rec.City)
	}
	if rec.NameKo != "송정해수욕장" {
		t.Errorf("korean name not applied: %q", rec.NameKo)
	}
}

func TestGradeTableLetterMapping(t *testing.T) {
	grades := testGrades()
	cases := []struct {
		raw  string
		want string
	}{
		{"3.5", "A+"},
		{"3.0", "A+"},
		{"2.9", "A"},
		{"2.5", "A"},
		{"2.0", "B"},
		{"1.5", "C"},
		{"0.5", "D"},
		{"A", "A"},  // letters pass through
		{"A+", "A+"},
	}
	for _, tc := range cases {
		if got := grades.Letter(tc.raw); got != tc.want {
			t.Errorf("Letter(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
