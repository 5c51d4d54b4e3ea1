package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a single analytics event (page view, click, ...) submitted by an
// app. Metadata is free-form JSON supplied by the caller.
type Event struct {
	ID        uuid.UUID      `db:"id"         json:"id"`
	AppID     uuid.UUID      `db:"app_id"     json:"app_id"`
	Event     string         `db:"event"      json:"event"`
	URL       *string        `db:"url"        json:"url,omitempty"`
	Referrer  *string        `db:"referrer"   json:"referrer,omitempty"`
	Device    *string        `db:"device"     json:"device,omitempty"`
	IPAddress *string        `db:"ip_address" json:"ip_address,omitempty"`
	UserID    *string        `db:"user_id"    json:"user_id,omitempty"`
	TS        time.Time      `db:"ts"         json:"ts"`
	Metadata  map[string]any `db:"metadata"   json:"metadata"`
}
