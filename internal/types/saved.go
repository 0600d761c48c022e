package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SavedSelection is a user's pinned forecast together with a local copy
// of the metrics at save time. The copy is what change detection compares
// against newly ingested forecasts.
//
// Store key: (UserID, SortKey) where SortKey = "{locationId}#{surfTimestamp}".
type SavedSelection struct {
	UserID        string      `json:"userId" dynamodbav:"userId"`
	SortKey       string      `json:"sortKey" dynamodbav:"sortKey"`
	LocationID    string      `json:"locationId" dynamodbav:"locationId"`
	SurfTimestamp string      `json:"surfTimestamp" dynamodbav:"surfTimestamp"`
	SavedAt       string      `json:"savedAt" dynamodbav:"savedAt"`
	SurferLevel   SurferLevel `json:"surferLevel" dynamodbav:"surferLevel"`

	// Metric copy at save time, refreshed when a change is flagged.
	SurfScore        float64  `json:"surfScore" dynamodbav:"surfScore"`
	SurfGrade        string   `json:"surfGrade" dynamodbav:"surfGrade"`
	WaveHeight       *float64 `json:"waveHeight,omitempty" dynamodbav:"waveHeight,omitempty"`
	WavePeriod       *float64 `json:"wavePeriod,omitempty" dynamodbav:"wavePeriod,omitempty"`
	WindSpeed        *float64 `json:"windSpeed,omitempty" dynamodbav:"windSpeed,omitempty"`
	WaterTemperature *float64 `json:"waterTemperature,omitempty" dynamodbav:"waterTemperature,omitempty"`

	FlagChange    bool   `json:"flagChange" dynamodbav:"flagChange"`
	ChangeMessage string `json:"changeMessage,omitempty" dynamodbav:"changeMessage,omitempty"`

	Address       string `json:"address,omitempty" dynamodbav:"address,omitempty"`
	Region        string `json:"region,omitempty" dynamodbav:"region,omitempty"`
	Country       string `json:"country,omitempty" dynamodbav:"country,omitempty"`
	DepartureDate string `json:"departureDate,omitempty" dynamodbav:"departureDate,omitempty"`
}

// SelectionSortKey builds the saved-list sort key for a location/timestamp
// pair.
func SelectionSortKey(locationID, surfTimestamp string) string {
	return locationID + "#" + surfTimestamp
}

// SplitSelectionSortKey recovers (locationId, surfTimestamp) from a sort
// key. Location IDs themselves contain a '#', so the split is on the last
// two segments: "{lat}#{lng}#{timestamp}".
func SplitSelectionSortKey(sortKey string) (locationID, surfTimestamp string, err error) {
	parts := strings.SplitN(sortKey, "#", 3)
	if len(parts) == 3 {
		return parts[0] + "#" + parts[1], parts[2], nil
	}
	if len(parts) == 2 {
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("malformed selection sort key %q", sortKey)
}

// FieldChange is one entry of a change message: a tracked metric whose
// value moved beyond the significance epsilon.
type FieldChange struct {
	Field string  `json:"field"`
	Old   float64 `json:"old"`
	New   float64 `json:"new"`
}

// ChangeSet is the machine-readable payload stored in
// SavedSelection.ChangeMessage. The UI localizes it; the backend never
// formats it as prose.
type ChangeSet struct {
	Changes []FieldChange `json:"changes"`
}

// Encode serializes the change set to its stored JSON form.
func (c ChangeSet) Encode() string {
	b, err := json.Marshal(c)
	if err != nil {
		return `{"changes":[]}`
	}
	return string(b)
}
