package keys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/pkg/models"
	"github.com/google/uuid"
)

// ErrMalformedKey is returned when a presented key lacks the expected
// prefix segment. Distinct from an invalid key, which returns no match.
var ErrMalformedKey = errors.New("malformed api key")

// IssuedKey is the one-time result of creating or regenerating a key. The
// Plaintext field is returned to the caller exactly once and never stored.
type IssuedKey struct {
	KeyID     uuid.UUID  `json:"api_key_id"`
	Plaintext string     `json:"api_key"`
	Prefix    string     `json:"prefix"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Service issues, revokes, regenerates and verifies API keys.
type Service struct {
	store store.Store
}

// NewService creates a new key Service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// RegisterApp creates an app owned by the user with the given email,
// creating the user first if needed.
func (s *Service) RegisterApp(ctx context.Context, ownerEmail, name string) (*models.App, error) {
	user, err := s.store.EnsureUser(ctx, ownerEmail, "dev")
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	app := &models.App{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   user.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateApp(ctx, app); err != nil {
		return nil, fmt.Errorf("create app: %w", err)
	}
	return app, nil
}

// CreateKey issues a new key for an app. Returns store.ErrNotFound if the
// app does not exist. Only the prefix and the argon2id hash of the full
// plaintext are persisted.
func (s *Service) CreateKey(ctx context.Context, appID uuid.UUID, expiresAt *time.Time) (*IssuedKey, error) {
	app, err := s.store.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}

	return s.issue(ctx, app.ID, expiresAt, nil)
}

// ListKeys returns key metadata for an app. The plaintext is long gone and
// the hash is excluded from serialization by the model.
func (s *Service) ListKeys(ctx context.Context, appID uuid.UUID) ([]*models.APIKey, error) {
	return s.store.ListAPIKeys(ctx, appID)
}

// Revoke flips a key to revoked. Idempotent: revoking an already-revoked
// key returns the stored record without a write.
func (s *Service) Revoke(ctx context.Context, keyID uuid.UUID) (*models.APIKey, error) {
	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if key.Status == models.KeyStatusRevoked {
		return key, nil
	}
	return s.store.UpdateAPIKeyStatus(ctx, keyID, models.KeyStatusRevoked)
}

// Regenerate revokes the old key and issues a fresh one under the same app,
// carrying the old expiry forward when none is supplied and recording
// lineage. The two writes are not transactional; if the create fails after
// the revoke succeeded the caller is left without a valid key, which is
// logged loudly rather than retried (a retry could mint duplicate keys).
func (s *Service) Regenerate(ctx context.Context, keyID uuid.UUID, expiresAt *time.Time) (*IssuedKey, error) {
	prev, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if prev.Status != models.KeyStatusRevoked {
		if _, err := s.store.UpdateAPIKeyStatus(ctx, keyID, models.KeyStatusRevoked); err != nil {
			return nil, fmt.Errorf("revoke previous key: %w", err)
		}
	}

	if expiresAt == nil {
		expiresAt = prev.ExpiresAt
	}

	issued, err := s.issue(ctx, prev.AppID, expiresAt, &prev.ID)
	if err != nil {
		slog.Error("key regeneration left caller without a valid key",
			"api_key_id", keyID, "app_id", prev.AppID, "error", err)
		return nil, fmt.Errorf("issue replacement key: %w", err)
	}
	return issued, nil
}

func (s *Service) issue(ctx context.Context, appID uuid.UUID, expiresAt *time.Time, regeneratedFrom *uuid.UUID) (*IssuedKey, error) {
	prefix, plaintext, err := generateKey()
	if err != nil {
		return nil, err
	}

	hash, err := hashKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	key := &models.APIKey{
		ID:                uuid.New(),
		AppID:             appID,
		KeyPrefix:         prefix,
		KeyHash:           hash,
		Status:            models.KeyStatusActive,
		ExpiresAt:         expiresAt,
		RegeneratedFromID: regeneratedFrom,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("persist key: %w", err)
	}

	return &IssuedKey{
		KeyID:     key.ID,
		Plaintext: plaintext,
		Prefix:    prefix,
		ExpiresAt: key.ExpiresAt,
	}, nil
}

// VerifyKey resolves a presented key to its record and owning app. Returns
// ErrMalformedKey when the key lacks a well-formed prefix segment, and
// (nil, nil, nil) when no active, unexpired candidate verifies. Callers
// map the no-match case to a rejection distinct from malformed input.
func (s *Service) VerifyKey(ctx context.Context, presented string) (*models.APIKey, *models.App, error) {
	prefix, err := splitPrefix(presented)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.store.GetAPIKeysByPrefixAndStatus(ctx, prefix, models.KeyStatusActive)
	if err != nil {
		return nil, nil, fmt.Errorf("find candidate keys: %w", err)
	}

	now := time.Now()
	for _, key := range candidates {
		if key.Expired(now) {
			continue
		}
		ok, err := verifyHash(key.KeyHash, presented)
		if err != nil || !ok {
			continue
		}
		app, err := s.store.GetApp(ctx, key.AppID)
		if err != nil {
			return nil, nil, fmt.Errorf("load app for key: %w", err)
		}
		return key, app, nil
	}
	return nil, nil, nil
}

// splitPrefix extracts the public prefix segment ("ak_XXXX") from a
// presented key of the form "ak_XXXX_<body>".
func splitPrefix(presented string) (string, error) {
	if !strings.HasPrefix(presented, PrefixMarker) {
		return "", ErrMalformedKey
	}
	if len(presented) <= PrefixLen || presented[PrefixLen] != '_' {
		return "", ErrMalformedKey
	}
	return presented[:PrefixLen], nil
}
