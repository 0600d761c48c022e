package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"awaves/internal/types"
)

// defaultNearbyLimit is the result cap when the client omits limit.
const defaultNearbyLimit = 10

// SpotService is the query engine surface the handlers call.
type SpotService interface {
	SpotsForDate(ctx context.Context, date, timeOfDay string) ([]types.ForecastRecord, error)
	SpotData(ctx context.Context, locationID, date string) ([]types.ForecastRecord, error)
	NearbySpots(ctx context.Context, lat, lng float64, limit int, date, timeOfDay string) ([]types.ForecastRecord, error)
	Search(ctx context.Context, query, date, timeOfDay string) ([]types.ForecastRecord, error)
	WarmCaches(ctx context.Context) error
}

// SpotsHandler serves the forecast read endpoints.
type SpotsHandler struct {
	spots SpotService
}

// NewSpotsHandler creates the spots handler.
func NewSpotsHandler(spots SpotService) *SpotsHandler {
	return &SpotsHandler{spots: spots}
}

// HandleList is GET /spots?date=YYYY-MM-DD&time=HH:mm.
func (h *SpotsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	date, timeOfDay, err := dateTimeParams(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	spots, err := h.spots.SpotsForDate(r.Context(), date, timeOfDay)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: spots})
}

// HandleSpot is GET /spots/{locationId}?date=YYYY-MM-DD. The location
// ID contains a '#', so clients send it URL-encoded.
func (h *SpotsHandler) HandleSpot(w http.ResponseWriter, r *http.Request) {
	locationID, err := url.PathUnescape(chi.URLParam(r, "locationId"))
	if err != nil || locationID == "" {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationInvalidLocation,
			Message: "invalid location id",
		})
		return
	}

	date, _, err := dateTimeParams(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	records, err := h.spots.SpotData(r.Context(), locationID, date)
	if err != nil {
		Error(w, r, err)
		return
	}
	if len(records) == 0 {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeNotFoundSpot,
			Message: "no forecast data for location " + locationID,
		})
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: records})
}

// HandleNearby is GET /spots/nearby?lat=&lng=&limit=&date=&time=.
func (h *SpotsHandler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationInvalidLat,
			Message: "lat must be a number in [-90, 90]",
		})
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationInvalidLon,
			Message: "lng must be a number in [-180, 180]",
		})
		return
	}

	limit := defaultNearbyLimit
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	date, timeOfDay, err := dateTimeParams(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	spots, err := h.spots.NearbySpots(r.Context(), lat, lng, limit, date, timeOfDay)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: spots})
}

// HandleSearch is GET /spots/search?q=&date=&time=.
func (h *SpotsHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationMissingField,
			Message: "q is required",
		})
		return
	}

	date, timeOfDay, err := dateTimeParams(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	spots, err := h.spots.Search(r.Context(), query, date, timeOfDay)
	if err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: spots})
}

// HandleWarm is POST /internal/cache/warm.
func (h *SpotsHandler) HandleWarm(w http.ResponseWriter, r *http.Request) {
	if err := h.spots.WarmCaches(r.Context()); err != nil {
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"status": "warmed"}})
}

// dateTimeParams validates the optional date and time query parameters.
func dateTimeParams(r *http.Request) (date, timeOfDay string, err error) {
	q := r.URL.Query()

	date = q.Get("date")
	if date != "" {
		if _, perr := time.Parse("2006-01-02", date); perr != nil {
			return "", "", &types.AppError{
				Code:    types.ErrCodeValidationInvalidDate,
				Message: "date must be YYYY-MM-DD",
			}
		}
	}

	timeOfDay = q.Get("time")
	if timeOfDay != "" {
		if _, perr := time.Parse("15:04", timeOfDay); perr != nil {
			return "", "", &types.AppError{
				Code:    types.ErrCodeValidationInvalidTime,
				Message: "time must be HH:mm",
			}
		}
	}

	return date, timeOfDay, nil
}
