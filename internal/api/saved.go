package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"awaves/internal/types"
)

// SavedRepository is the saved-list store surface the handler uses.
type SavedRepository interface {
	Create(ctx context.Context, sel types.SavedSelection) error
	QueryByUser(ctx context.Context, userID string) ([]types.SavedSelection, error)
	Acknowledge(ctx context.Context, userID, sortKey string) error
	Delete(ctx context.Context, userID, sortKey string) error
}

// SavedItemsCache is the per-user saved-list cache tier.
type SavedItemsCache interface {
	Get(ctx context.Context, userID string) []types.SavedSelection
	Store(ctx context.Context, userID string, items []types.SavedSelection)
	Invalidate(ctx context.Context, userID string)
}

// SavedHandler serves the saved-selection endpoints.
type SavedHandler struct {
	repo  SavedRepository
	cache SavedItemsCache
	clock types.Clock
}

// NewSavedHandler creates the saved-selections handler.
func NewSavedHandler(repo SavedRepository, cache SavedItemsCache, clock types.Clock) *SavedHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SavedHandler{repo: repo, cache: cache, clock: clock}
}

// HandleList is GET /saved/{userId}.
func (h *SavedHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationMissingField,
			Message: "user id is required",
		})
		return
	}

	if items := h.cache.Get(r.Context(), userID); items != nil {
		JSON(w, r, http.StatusOK, APIResponse{Data: items})
		return
	}

	items, err := h.repo.QueryByUser(r.Context(), userID)
	if err != nil {
		Error(w, r, err)
		return
	}
	h.cache.Store(r.Context(), userID, items)
	JSON(w, r, http.StatusOK, APIResponse{Data: items})
}

// HandleCreate is POST /saved. Duplicate selections conflict rather
// than overwrite, so a re-save cannot clobber a flagged change.
func (h *SavedHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var sel types.SavedSelection
	if err := DecodeJSON(r, &sel); err != nil {
		Error(w, r, err)
		return
	}

	if sel.UserID == "" || sel.LocationID == "" || sel.SurfTimestamp == "" {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationMissingField,
			Message: "userId, locationId, and surfTimestamp are required",
		})
		return
	}
	if sel.SurferLevel == "" {
		sel.SurferLevel = types.LevelBeginner
	}
	if !sel.SurferLevel.Valid() {
		Error(w, r, &types.AppError{
			Code:    types.ErrCodeValidationMissingField,
			Message: "surferLevel must be BEGINNER, INTERMEDIATE, or ADVANCED",
		})
		return
	}

	sel.SortKey = types.SelectionSortKey(sel.LocationID, sel.SurfTimestamp)
	sel.SavedAt = h.clock.Now().UTC().Format("2006-01-02T15:04:05Z")
	sel.FlagChange = false
	sel.ChangeMessage = ""

	if err := h.repo.Create(r.Context(), sel); err != nil {
		Error(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), sel.UserID)
	JSON(w, r, http.StatusCreated, APIResponse{Data: sel})
}

// HandleAcknowledge is POST /saved/{userId}/{sortKey}/acknowledge:
// the user has seen the flagged change, clear it.
func (h *SavedHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	userID, sortKey, err := selectionParams(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	if err := h.repo.Acknowledge(r.Context(), userID, sortKey); err != nil {
		Error(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), userID)
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]string{"status": "acknowledged"}})
}

// HandleDelete is DELETE /saved/{userId}/{sortKey}.
func (h *SavedHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, sortKey, err := selectionParams(r)
	if err != nil {
		Error(w, r, err)
		return
	}

	if err := h.repo.Delete(r.Context(), userID, sortKey); err != nil {
		Error(w, r, err)
		return
	}
	h.cache.Invalidate(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

func selectionParams(r *http.Request) (userID, sortKey string, err error) {
	userID = chi.URLParam(r, "userId")
	sortKey, perr := url.PathUnescape(chi.URLParam(r, "sortKey"))
	if userID == "" || perr != nil || sortKey == "" {
		return "", "", &types.AppError{
			Code:    types.ErrCodeValidationMissingField,
			Message: "user id and sort key are required",
		}
	}
	return userID, sortKey, nil
}
