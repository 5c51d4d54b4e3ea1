package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	mw "github.com/beaconhq/beacon/internal/api/middleware"
	"github.com/beaconhq/beacon/internal/api/response"
	"github.com/beaconhq/beacon/internal/keys"
	"github.com/beaconhq/beacon/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// keyMetadata is what key listings expose. Never the plaintext or the hash.
type keyMetadata struct {
	ID        uuid.UUID  `json:"id"`
	Prefix    string     `json:"prefix"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewRegisterAppHandler returns the handler for POST /api/v1/apps. It
// registers an app for the dev user and issues its first API key, returning
// the plaintext exactly once.
func NewRegisterAppHandler(svc *keys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := mw.GetDevUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing dev user", nil)
			return
		}

		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}

		app, err := svc.RegisterApp(r.Context(), email, req.Name)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register app", nil)
			return
		}

		issued, err := svc.CreateKey(r.Context(), app.ID, nil)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue API key", nil)
			return
		}

		response.Created(w, map[string]any{
			"app":       app,
			"apiKey":    issued.Plaintext,
			"apiKeyId":  issued.KeyID,
			"prefix":    issued.Prefix,
			"expiresAt": issued.ExpiresAt,
		})
	}
}

// NewListKeysHandler returns the handler for GET /api/v1/apps/{appID}/keys.
func NewListKeysHandler(svc *keys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, err := uuid.Parse(chi.URLParam(r, "appID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "appID must be a valid UUID", nil)
			return
		}

		list, err := svc.ListKeys(r.Context(), appID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
			return
		}

		out := make([]keyMetadata, 0, len(list))
		for _, k := range list {
			out = append(out, keyMetadata{
				ID:        k.ID,
				Prefix:    k.KeyPrefix,
				Status:    k.Status,
				CreatedAt: k.CreatedAt,
				ExpiresAt: k.ExpiresAt,
			})
		}
		response.JSON(w, map[string]any{"appId": appID, "keys": out})
	}
}

// NewRevokeKeyHandler returns the handler for POST /api/v1/keys/revoke.
// Revoking an already-revoked key is idempotent.
func NewRevokeKeyHandler(svc *keys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKeyID string `json:"apiKeyId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		keyID, err := uuid.Parse(req.APIKeyID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "apiKeyId must be a valid UUID", nil)
			return
		}

		key, err := svc.Revoke(r.Context(), keyID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke key", nil)
			return
		}

		response.JSON(w, map[string]any{"id": key.ID, "status": key.Status})
	}
}

// NewRegenerateKeyHandler returns the handler for POST /api/v1/keys/regenerate.
// The old key is revoked and the new plaintext is returned exactly once.
func NewRegenerateKeyHandler(svc *keys.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKeyID  string `json:"apiKeyId"`
			ExpiresAt string `json:"expiresAt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		keyID, err := uuid.Parse(req.APIKeyID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "apiKeyId must be a valid UUID", nil)
			return
		}

		var expiresAt *time.Time
		if req.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "expiresAt must be a valid RFC3339 timestamp", nil)
				return
			}
			expiresAt = &t
		}

		issued, err := svc.Regenerate(r.Context(), keyID, expiresAt)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to regenerate key", nil)
			return
		}

		response.JSON(w, map[string]any{
			"apiKeyId":  issued.KeyID,
			"apiKey":    issued.Plaintext,
			"prefix":    issued.Prefix,
			"expiresAt": issued.ExpiresAt,
		})
	}
}
