package middleware

import (
	"errors"
	"net/http"

	"github.com/beaconhq/beacon/internal/api/response"
	"github.com/beaconhq/beacon/internal/keys"
)

// APIKeyHeader carries the full key on ingest and analytics requests.
const APIKeyHeader = "x-api-key"

// DevUserHeader carries the developer email for app registration and key
// management. Placeholder until a real identity provider is wired in.
const DevUserHeader = "x-dev-user"

// Auth provides the API-key and dev-auth middleware.
type Auth struct {
	keys            *keys.Service
	devEmailDefault string
}

// NewAuth creates the Auth middleware. devEmailDefault is used when requests
// omit the dev-user header; empty means the header is required.
func NewAuth(k *keys.Service, devEmailDefault string) *Auth {
	return &Auth{keys: k, devEmailDefault: devEmailDefault}
}

// RequireAPIKey verifies the x-api-key header and sets the owning app id and
// key prefix in the request context. Missing key is 401, malformed key is
// 400, a key that does not verify (unknown, revoked, expired) is 403.
func (a *Auth) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(APIKeyHeader)
		if presented == "" {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Missing x-api-key header", nil)
			return
		}

		key, app, err := a.keys.VerifyKey(r.Context(), presented)
		if errors.Is(err, keys.ErrMalformedKey) {
			response.Error(w, http.StatusBadRequest,
				"MALFORMED_KEY", "API key is malformed", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}
		if key == nil {
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Invalid, expired, or revoked API key", nil)
			return
		}

		ctx := setAppID(r.Context(), app.ID)
		ctx = setKeyPrefix(ctx, key.KeyPrefix)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireDevUser reads the developer email from the dev-auth header, falling
// back to the configured default.
func (a *Auth) RequireDevUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := r.Header.Get(DevUserHeader)
		if email == "" {
			email = a.devEmailDefault
		}
		if email == "" {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Set the x-dev-user header or DEV_USER_EMAIL", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(setDevUser(r.Context(), email)))
	})
}
