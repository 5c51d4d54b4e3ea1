package store

import (
	"context"
	"errors"
	"time"

	"github.com/beaconhq/beacon/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	EnsureUser(ctx context.Context, email, provider string) (*models.User, error)
	CreateApp(ctx context.Context, app *models.App) error
	GetApp(ctx context.Context, id uuid.UUID) (*models.App, error)
	ListAppsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.App, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKey, error)
	GetAPIKeysByPrefixAndStatus(ctx context.Context, prefix, status string) ([]*models.APIKey, error)
	ListAPIKeys(ctx context.Context, appID uuid.UUID) ([]*models.APIKey, error)
	UpdateAPIKeyStatus(ctx context.Context, id uuid.UUID, status string) (*models.APIKey, error)

	InsertEvent(ctx context.Context, event *models.Event) error
	CountEvents(ctx context.Context, filter EventFilter) (int64, error)
	CountDistinctUsers(ctx context.Context, filter EventFilter) (int64, error)
	GroupByDevice(ctx context.Context, filter EventFilter) (map[string]int64, error)
	FindRecentEvents(ctx context.Context, filter EventFilter, limit int) ([]*models.Event, error)
}

// EventFilter scopes event queries to an app, with optional event name, user
// id, and inclusive [Start, End] time range.
type EventFilter struct {
	AppID  uuid.UUID
	Event  string
	UserID string
	Start  *time.Time
	End    *time.Time
}
