package types

import "strconv"

// GradeTable maps numeric grade strings to letter grades on the read
// side. Older records persisted numeric grades ("2.5"); newer ones
// persist letters. The cutpoints changed between platform versions, so
// the table is injected from configuration rather than hardcoded.
//
// Thresholds must be strictly descending and pair index-wise with
// Letters; values below the last cutpoint map to Floor.
type GradeTable struct {
	Thresholds []float64
	Letters    []string
	Floor      string
}

// DefaultGradeTable returns the canonical read-side grade mapping:
// >=3.0 "A+", >=2.5 "A", >=2.0 "B", >=1.0 "C", else "D".
func DefaultGradeTable() GradeTable {
	return GradeTable{
		Thresholds: []float64{3.0, 2.5, 2.0, 1.0},
		Letters:    []string{"A+", "A", "B", "C"},
		Floor:      "D",
	}
}

// Letter converts a stored grade to its letter form. Numeric strings go
// through the threshold table; anything else (already a letter) passes
// through unchanged.
func (t GradeTable) Letter(raw string) string {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	for i, threshold := range t.Thresholds {
		if v >= threshold {
			return t.Letters[i]
		}
	}
	return t.Floor
}

// Numeric returns the numeric value of a stored grade, or 0 when it was
// not numeric. Kept alongside the letter so clients that sort on the raw
// grade keep working.
func (t GradeTable) Numeric(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
