package handler

import (
	"encoding/json"
	"net"
	"net/http"

	mw "github.com/beaconhq/beacon/internal/api/middleware"
	"github.com/beaconhq/beacon/internal/api/response"
	"github.com/beaconhq/beacon/internal/ingest"
)

// NewCollectEventHandler returns the handler for POST /api/v1/events.
// Accepted submissions get a 202; the event is attributed to the app that
// owns the presented API key.
func NewCollectEventHandler(svc *ingest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, ok := mw.GetAppID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing app identity", nil)
			return
		}

		var sub ingest.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if sub.Event == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "event is required", nil)
			return
		}

		if err := svc.Store(r.Context(), appID, sub, remoteIP(r)); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store event", nil)
			return
		}

		response.Accepted(w, map[string]string{"status": "accepted"})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
