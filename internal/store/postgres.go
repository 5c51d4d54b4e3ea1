package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beaconhq/beacon/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

// EnsureUser returns the user with the given email, creating it first if it
// does not exist yet.
func (s *PostgresStore) EnsureUser(ctx context.Context, email, provider string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, provider, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (id, email, provider, created_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		 RETURNING id, email, provider, created_at`,
		uuid.New(), email, provider,
	).Scan(&u.ID, &u.Email, &u.Provider, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// --- Apps ---

func (s *PostgresStore) CreateApp(ctx context.Context, app *models.App) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO apps (id, name, owner_id, created_at) VALUES ($1, $2, $3, $4)`,
		app.ID, app.Name, app.OwnerID, app.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create app: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApp(ctx context.Context, id uuid.UUID) (*models.App, error) {
	var a models.App
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM apps WHERE id = $1`, id,
	).Scan(&a.ID, &a.Name, &a.OwnerID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAppsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.App, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, owner_id, created_at FROM apps WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list apps by owner: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		var a models.App
		if err := rows.Scan(&a.ID, &a.Name, &a.OwnerID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, app_id, key_prefix, key_hash, status, expires_at, regenerated_from_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.AppID, key.KeyPrefix, key.KeyHash, key.Status,
		key.ExpiresAt, key.RegeneratedFromID, key.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	var k models.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT id, app_id, key_prefix, key_hash, status, expires_at, regenerated_from_id, created_at
		 FROM api_keys WHERE id = $1`, id,
	).Scan(&k.ID, &k.AppID, &k.KeyPrefix, &k.KeyHash, &k.Status,
		&k.ExpiresAt, &k.RegeneratedFromID, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &k, nil
}

func (s *PostgresStore) GetAPIKeysByPrefixAndStatus(ctx context.Context, prefix, status string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, app_id, key_prefix, key_hash, status, expires_at, regenerated_from_id, created_at
		 FROM api_keys WHERE key_prefix = $1 AND status = $2`, prefix, status)
	if err != nil {
		return nil, fmt.Errorf("get api keys by prefix: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, appID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, app_id, key_prefix, key_hash, status, expires_at, regenerated_from_id, created_at
		 FROM api_keys WHERE app_id = $1 ORDER BY created_at DESC`, appID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyStatus(ctx context.Context, id uuid.UUID, status string) (*models.APIKey, error) {
	var k models.APIKey
	err := s.pool.QueryRow(ctx,
		`UPDATE api_keys SET status = $2 WHERE id = $1
		 RETURNING id, app_id, key_prefix, key_hash, status, expires_at, regenerated_from_id, created_at`,
		id, status,
	).Scan(&k.ID, &k.AppID, &k.KeyPrefix, &k.KeyHash, &k.Status,
		&k.ExpiresAt, &k.RegeneratedFromID, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update api key status: %w", err)
	}
	return &k, nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.AppID, &k.KeyPrefix, &k.KeyHash, &k.Status,
			&k.ExpiresAt, &k.RegeneratedFromID, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Events ---

func (s *PostgresStore) InsertEvent(ctx context.Context, event *models.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, app_id, event, url, referrer, device, ip_address, user_id, ts, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.AppID, event.Event, event.URL, event.Referrer, event.Device,
		event.IPAddress, event.UserID, event.TS, event.Metadata)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountEvents(ctx context.Context, filter EventFilter) (int64, error) {
	where, args := eventWhere(filter)

	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM events WHERE "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountDistinctUsers(ctx context.Context, filter EventFilter) (int64, error) {
	where, args := eventWhere(filter)

	var count int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(DISTINCT user_id) FROM events WHERE "+where+" AND user_id IS NOT NULL",
		args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct users: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) GroupByDevice(ctx context.Context, filter EventFilter) (map[string]int64, error) {
	where, args := eventWhere(filter)

	rows, err := s.pool.Query(ctx,
		"SELECT COALESCE(device, 'unknown'), COUNT(*) FROM events WHERE "+where+" GROUP BY 1",
		args...)
	if err != nil {
		return nil, fmt.Errorf("group events by device: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var device string
		var count int64
		if err := rows.Scan(&device, &count); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		result[device] = count
	}
	return result, rows.Err()
}

func (s *PostgresStore) FindRecentEvents(ctx context.Context, filter EventFilter, limit int) ([]*models.Event, error) {
	where, args := eventWhere(filter)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, app_id, event, url, referrer, device, ip_address, user_id, ts, metadata
		 FROM events WHERE %s ORDER BY ts DESC LIMIT $%d`, where, len(args)),
		args...)
	if err != nil {
		return nil, fmt.Errorf("find recent events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.AppID, &e.Event, &e.URL, &e.Referrer, &e.Device,
			&e.IPAddress, &e.UserID, &e.TS, &e.Metadata); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// eventWhere builds the WHERE clause for an EventFilter. The time range is
// inclusive on both ends.
func eventWhere(filter EventFilter) (string, []any) {
	conditions := []string{"app_id = $1"}
	args := []any{filter.AppID}
	argIdx := 2

	if filter.Event != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argIdx))
		args = append(args, filter.Event)
		argIdx++
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.Start != nil {
		conditions = append(conditions, fmt.Sprintf("ts >= $%d", argIdx))
		args = append(args, *filter.Start)
		argIdx++
	}
	if filter.End != nil {
		conditions = append(conditions, fmt.Sprintf("ts <= $%d", argIdx))
		args = append(args, *filter.End)
		argIdx++
	}

	return strings.Join(conditions, " AND "), args
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
