package handler

import (
	"net/http"
	"time"

	"github.com/beaconhq/beacon/internal/analytics"
	mw "github.com/beaconhq/beacon/internal/api/middleware"
	"github.com/beaconhq/beacon/internal/api/response"
)

// NewEventSummaryHandler returns the handler for
// GET /api/v1/analytics/event-summary?event&startDate&endDate.
func NewEventSummaryHandler(svc *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, ok := mw.GetAppID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing app identity", nil)
			return
		}

		event := r.URL.Query().Get("event")
		if event == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "event is required", nil)
			return
		}

		start, err := parseOptionalTime(r.URL.Query().Get("startDate"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "startDate must be a valid RFC3339 timestamp", nil)
			return
		}
		end, err := parseOptionalTime(r.URL.Query().Get("endDate"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "endDate must be a valid RFC3339 timestamp", nil)
			return
		}

		summary, err := svc.EventSummary(r.Context(), appID, event, start, end)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute event summary", nil)
			return
		}
		response.JSON(w, summary)
	}
}

// NewUserStatsHandler returns the handler for
// GET /api/v1/analytics/user-stats?userId.
func NewUserStatsHandler(svc *analytics.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, ok := mw.GetAppID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing app identity", nil)
			return
		}

		userID := r.URL.Query().Get("userId")
		if userID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId is required", nil)
			return
		}

		stats, err := svc.UserStats(r.Context(), appID, userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute user stats", nil)
			return
		}
		response.JSON(w, stats)
	}
}

func parseOptionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
