package spots

import (
	"context"
	"strconv"
	"strings"

	"awaves/internal/types"
)

// enrich attaches display metadata to each record from the location
// directory. English fields only backfill blanks (records may carry
// denormalized names already); Korean fields always follow the
// directory. Directory failures degrade to coordinate-derived names.
func (s *Service) enrich(ctx context.Context, records []types.ForecastRecord) []types.ForecastRecord {
	if len(records) == 0 {
		return records
	}

	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.LocationID]; ok {
			continue
		}
		seen[rec.LocationID] = struct{}{}
		ids = append(ids, rec.LocationID)
	}

	meta, err := s.locations.BatchGet(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "location metadata lookup failed, serving coordinates", "error", err)
		meta = nil
	}

	out := make([]types.ForecastRecord, len(records))
	for i, rec := range records {
		applyMeta(&rec, meta[rec.LocationID])
		out[i] = rec
	}
	return out
}

func applyMeta(rec *types.ForecastRecord, m types.LocationMeta) {
	coordName := coordinateName(rec)

	if m.DisplayName != "" && (rec.Name == "" || rec.Name == coordName) {
		rec.Name = m.DisplayName
	}
	if rec.Name == "" {
		rec.Name = coordName
	}
	if rec.City == "" {
		rec.City = m.City
	}
	if rec.Region == "" {
		rec.Region = m.Region
	}
	if rec.Country == "" {
		rec.Country = m.Country
	}
	if rec.Address == "" {
		rec.Address = joinAddress(m.City, m.Region, m.Country)
	}

	rec.NameKo = m.NameKo
	rec.CityKo = m.CityKo
	rec.RegionKo = m.RegionKo
	rec.CountryKo = m.CountryKo
	rec.AddressKo = joinAddress(m.CityKo, m.RegionKo, m.CountryKo)
}

// coordinateName is the "lat, lng" fallback display name.
func coordinateName(rec *types.ForecastRecord) string {
	return strconv.FormatFloat(rec.Geo.Lat, 'f', -1, 64) + ", " +
		strconv.FormatFloat(rec.Geo.Lng, 'f', -1, 64)
}

func joinAddress(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
