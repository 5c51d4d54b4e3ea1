package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	appIDKey     contextKey = "app_id"
	keyPrefixKey contextKey = "key_prefix"
	devUserKey   contextKey = "dev_user_email"
)

func setAppID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, appIDKey, id)
}

// GetAppID returns the authenticated app's id set by the API-key middleware.
func GetAppID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(appIDKey).(uuid.UUID)
	return id, ok
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

// GetKeyPrefix returns the authenticated key's public prefix, used as the
// rate-limit identity.
func GetKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setDevUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, devUserKey, email)
}

// GetDevUser returns the developer email set by the dev-auth middleware.
func GetDevUser(r *http.Request) (string, bool) {
	email, ok := r.Context().Value(devUserKey).(string)
	return email, ok
}
