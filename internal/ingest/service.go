// Package ingest handles the event write path.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/pkg/models"
	"github.com/google/uuid"
)

// Submission is a single event as submitted by a client.
type Submission struct {
	Event     string         `json:"event"`
	URL       *string        `json:"url,omitempty"`
	Referrer  *string        `json:"referrer,omitempty"`
	Device    *string        `json:"device,omitempty"`
	IPAddress *string        `json:"ipAddress,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UserID    *string        `json:"userId,omitempty"`
}

// Service persists submitted events for an app.
type Service struct {
	store store.Store
}

// NewService creates an ingest Service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Store writes one event. The timestamp defaults to now and the IP address
// falls back to the request's remote address when the submission omits it.
func (s *Service) Store(ctx context.Context, appID uuid.UUID, sub Submission, requestIP string) error {
	ts := time.Now().UTC()
	if sub.Timestamp != nil {
		ts = sub.Timestamp.UTC()
	}

	ip := sub.IPAddress
	if ip == nil && requestIP != "" {
		ip = &requestIP
	}

	metadata := sub.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := &models.Event{
		ID:        uuid.New(),
		AppID:     appID,
		Event:     sub.Event,
		URL:       sub.URL,
		Referrer:  sub.Referrer,
		Device:    sub.Device,
		IPAddress: ip,
		UserID:    sub.UserID,
		TS:        ts,
		Metadata:  metadata,
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}
