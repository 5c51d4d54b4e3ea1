package models

import (
	"time"

	"github.com/google/uuid"
)

// API key lifecycle states. Keys are never deleted, only revoked.
const (
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"
)

// APIKey is a credential for ingest and analytics access. The raw key is
// shown once at creation; only the argon2id hash of the full key is stored.
type APIKey struct {
	ID                uuid.UUID  `db:"id"                  json:"id"`
	AppID             uuid.UUID  `db:"app_id"              json:"app_id"`
	KeyPrefix         string     `db:"key_prefix"          json:"key_prefix"`
	KeyHash           string     `db:"key_hash"            json:"-"`
	Status            string     `db:"status"              json:"status"`
	ExpiresAt         *time.Time `db:"expires_at"          json:"expires_at,omitempty"`
	RegeneratedFromID *uuid.UUID `db:"regenerated_from_id" json:"regenerated_from_id,omitempty"`
	CreatedAt         time.Time  `db:"created_at"          json:"created_at"`
}

// Expired reports whether the key's expiry, if set, is before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}
