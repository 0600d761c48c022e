package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"awaves/internal/types"
)

// mockSpotService returns canned results and records the last call.
type mockSpotService struct {
	spots []types.ForecastRecord
	err   error

	lastLocationID string
	lastLat        float64
	lastLng        float64
	lastLimit      int
	lastQuery      string
	warmed         bool
}

func (m *mockSpotService) SpotsForDate(_ context.Context, date, timeOfDay string) ([]types.ForecastRecord, error) {
	return m.spots, m.err
}

func (m *mockSpotService) SpotData(_ context.Context, locationID, date string) ([]types.ForecastRecord, error) {
	m.lastLocationID = locationID
	return m.spots, m.err
}

func (m *mockSpotService) NearbySpots(_ context.Context, lat, lng float64, limit int, date, timeOfDay string) ([]types.ForecastRecord, error) {
	m.lastLat, m.lastLng, m.lastLimit = lat, lng, limit
	return m.spots, m.err
}

func (m *mockSpotService) Search(_ context.Context, query, date, timeOfDay string) ([]types.ForecastRecord, error) {
	m.lastQuery = query
	return m.spots, m.err
}

func (m *mockSpotService) WarmCaches(_ context.Context) error {
	m.warmed = true
	return m.err
}

func newTestRouter(spots SpotService, saved *SavedHandler) http.Handler {
	if saved == nil {
		saved = NewSavedHandler(&mockSavedRepo{}, &mockSavedCache{}, nil)
	}
	logger := slog.New(slog.DiscardHandler)
	return NewRouter(NewSpotsHandler(spots), saved, logger)
}

func doRequest(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bodyReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return string(resp.Error.Code)
}

func TestListSpotsReturnsEnvelope(t *testing.T) {
	svc := &mockSpotService{spots: []types.ForecastRecord{
		{LocationID: "35.1#129.1", SurfTimestamp: "2026-03-01T06:00:00Z"},
	}}
	rec := doRequest(t, newTestRouter(svc, nil), http.MethodGet, "/spots?date=2026-03-01&time=06:00", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []types.ForecastRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "35.1#129.1", resp.Data[0].LocationID)
}

func TestListSpotsRejectsMalformedDate(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/spots?date=03-01-2026", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidDate), errorCode(t, rec))
}

func TestListSpotsRejectsMalformedTime(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/spots?date=2026-03-01&time=6am", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidTime), errorCode(t, rec))
}

func TestSpotDetailUnescapesLocationID(t *testing.T) {
	svc := &mockSpotService{spots: []types.ForecastRecord{
		{LocationID: "35.1#129.1", SurfTimestamp: "2026-03-01T06:00:00Z"},
	}}
	rec := doRequest(t, newTestRouter(svc, nil), http.MethodGet, "/spots/35.1%23129.1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "35.1#129.1", svc.lastLocationID)
}

func TestSpotDetailEmptyResultIsNotFound(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/spots/35.1%23129.1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundSpot), errorCode(t, rec))
}

func TestNearbyValidatesLatitude(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/spots/nearby?lat=95&lng=129.1", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidLat), errorCode(t, rec))
}

func TestNearbyValidatesLongitude(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/spots/nearby?lat=35.1&lng=190", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidLon), errorCode(t, rec))
}

func TestNearbyDefaultsLimit(t *testing.T) {
	svc := &mockSpotService{}
	rec := doRequest(t, newTestRouter(svc, nil), http.MethodGet, "/spots/nearby?lat=35.1&lng=129.1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 35.1, svc.lastLat)
	assert.Equal(t, 129.1, svc.lastLng)
	assert.Equal(t, defaultNearbyLimit, svc.lastLimit)
}

func TestSearchRequiresQuery(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/spots/search", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), errorCode(t, rec))
}

func TestServiceErrorsMapToUpstreamStatus(t *testing.T) {
	svc := &mockSpotService{err: &types.AppError{
		Code:    types.ErrCodeStoreUnavailable,
		Message: "dynamodb throttled",
	}}
	rec := doRequest(t, newTestRouter(svc, nil), http.MethodGet, "/spots", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, string(types.ErrCodeStoreUnavailable), errorCode(t, rec))
}

func TestWarmEndpointTriggersRefresh(t *testing.T) {
	svc := &mockSpotService{}
	rec := doRequest(t, newTestRouter(svc, nil), http.MethodPost, "/internal/cache/warm", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.warmed)
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockSpotService{}, nil), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
