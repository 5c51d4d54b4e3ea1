package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("beacon_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func seedApp(t *testing.T, s *store.PostgresStore) *models.App {
	t.Helper()
	ctx := context.Background()

	user, err := s.EnsureUser(ctx, "dev@example.com", "dev")
	require.NoError(t, err)

	app := &models.App{ID: uuid.New(), Name: "Demo", OwnerID: user.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateApp(ctx, app))
	return app
}

func seedEvent(t *testing.T, s *store.PostgresStore, appID uuid.UUID, name string, device, userID *string, ts time.Time) {
	t.Helper()
	require.NoError(t, s.InsertEvent(context.Background(), &models.Event{
		ID:       uuid.New(),
		AppID:    appID,
		Event:    name,
		Device:   device,
		UserID:   userID,
		TS:       ts,
		Metadata: map[string]any{"browser": "firefox"},
	}))
}

func strPtr(s string) *string { return &s }

func TestEnsureUser_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	first, err := s.EnsureUser(ctx, "someone@example.com", "dev")
	require.NoError(t, err)

	second, err := s.EnsureUser(ctx, "someone@example.com", "dev")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetApp_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetApp(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKeyLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	app := seedApp(t, s)

	key := &models.APIKey{
		ID:        uuid.New(),
		AppID:     app.ID,
		KeyPrefix: "ak_AB12",
		KeyHash:   "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		Status:    models.KeyStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	// Lookup by prefix and status returns the active key.
	found, err := s.GetAPIKeysByPrefixAndStatus(ctx, "ak_AB12", models.KeyStatusActive)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, key.ID, found[0].ID)

	// A second key sharing the prefix shows up alongside it.
	sibling := &models.APIKey{
		ID:        uuid.New(),
		AppID:     app.ID,
		KeyPrefix: "ak_AB12",
		KeyHash:   "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$b3RoZXI",
		Status:    models.KeyStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateAPIKey(ctx, sibling))

	found, err = s.GetAPIKeysByPrefixAndStatus(ctx, "ak_AB12", models.KeyStatusActive)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	// Revoked keys drop out of the active lookup.
	updated, err := s.UpdateAPIKeyStatus(ctx, key.ID, models.KeyStatusRevoked)
	require.NoError(t, err)
	assert.Equal(t, models.KeyStatusRevoked, updated.Status)

	found, err = s.GetAPIKeysByPrefixAndStatus(ctx, "ak_AB12", models.KeyStatusActive)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	// Lineage round-trips.
	child := &models.APIKey{
		ID:                uuid.New(),
		AppID:             app.ID,
		KeyPrefix:         "ak_CD34",
		KeyHash:           "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$bmV4dA",
		Status:            models.KeyStatusActive,
		RegeneratedFromID: &key.ID,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, s.CreateAPIKey(ctx, child))

	got, err := s.GetAPIKey(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RegeneratedFromID)
	assert.Equal(t, key.ID, *got.RegeneratedFromID)
}

func TestUpdateAPIKeyStatus_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.UpdateAPIKeyStatus(context.Background(), uuid.New(), models.KeyStatusRevoked)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEventAggregates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	app := seedApp(t, s)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seedEvent(t, s, app.ID, "page_view", strPtr("mobile"), strPtr("u1"), base)
	seedEvent(t, s, app.ID, "page_view", strPtr("mobile"), strPtr("u1"), base.Add(time.Minute))
	seedEvent(t, s, app.ID, "page_view", strPtr("desktop"), strPtr("u2"), base.Add(2*time.Minute))
	seedEvent(t, s, app.ID, "page_view", nil, nil, base.Add(3*time.Minute))
	seedEvent(t, s, app.ID, "click", strPtr("mobile"), strPtr("u1"), base.Add(4*time.Minute))

	filter := store.EventFilter{AppID: app.ID, Event: "page_view"}

	count, err := s.CountEvents(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// Null user ids are excluded from the distinct count.
	unique, err := s.CountDistinctUsers(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unique)

	devices, err := s.GroupByDevice(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), devices["mobile"])
	assert.Equal(t, int64(1), devices["desktop"])
	assert.Equal(t, int64(1), devices["unknown"])

	// Inclusive range bounds.
	start := base.Add(time.Minute)
	end := base.Add(2 * time.Minute)
	ranged := store.EventFilter{AppID: app.ID, Event: "page_view", Start: &start, End: &end}
	count, err = s.CountEvents(ctx, ranged)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Recent events come back newest first, capped at limit.
	recent, err := s.FindRecentEvents(ctx, store.EventFilter{AppID: app.ID, UserID: "u1"}, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "click", recent[0].Event)
	assert.Equal(t, "firefox", recent[0].Metadata["browser"])
	assert.True(t, recent[0].TS.After(recent[1].TS))
}

func TestCountEvents_OtherAppInvisible(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	app := seedApp(t, s)

	otherUser, err := s.EnsureUser(ctx, "other@example.com", "dev")
	require.NoError(t, err)
	other := &models.App{ID: uuid.New(), Name: "Other", OwnerID: otherUser.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateApp(ctx, other))

	seedEvent(t, s, app.ID, "page_view", nil, nil, time.Now().UTC())

	count, err := s.CountEvents(ctx, store.EventFilter{AppID: other.ID, Event: "page_view"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
