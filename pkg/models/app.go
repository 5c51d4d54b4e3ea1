package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a developer account that owns apps. Identity is placeholder
// dev-header auth for now; the provider column leaves room for a real
// identity provider later.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	Provider  string    `db:"provider"   json:"provider"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// App is a registered application. Every event and API key belongs to an app.
type App struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	OwnerID   uuid.UUID `db:"owner_id"   json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
