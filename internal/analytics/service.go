package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/beaconhq/beacon/internal/cache"
	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/pkg/models"
	"github.com/google/uuid"
)

const recentEventsLimit = 20

// TimeRange is an optional inclusive [Start, End] window on event queries.
type TimeRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// EventSummary is the aggregate answer for one event name within a range.
type EventSummary struct {
	Event       string           `json:"event"`
	Count       int64            `json:"count"`
	UniqueUsers int64            `json:"uniqueUsers"`
	DeviceData  map[string]int64 `json:"deviceData"`
	Range       TimeRange        `json:"range"`
}

// DeviceDetails is pulled from the metadata of a user's latest event.
type DeviceDetails struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// UserStats summarizes one user's activity within an app.
type UserStats struct {
	UserID        string          `json:"userId"`
	TotalEvents   int64           `json:"totalEvents"`
	RecentEvents  []*models.Event `json:"recentEvents"`
	DeviceDetails DeviceDetails   `json:"deviceDetails"`
	IPAddress     *string         `json:"ipAddress"`
}

// Service answers analytics queries, caching results cache-aside in the
// shared store. The cache is an optimization only: store failures on the
// read path degrade to computing the query directly.
type Service struct {
	store store.Store
	cache cache.Cache

	summaryTTL   time.Duration
	userStatsTTL time.Duration
}

// NewService creates an analytics Service with per-query cache TTLs.
func NewService(s store.Store, c cache.Cache, summaryTTL, userStatsTTL time.Duration) *Service {
	if summaryTTL <= 0 {
		summaryTTL = 90 * time.Second
	}
	if userStatsTTL <= 0 {
		userStatsTTL = 60 * time.Second
	}
	return &Service{store: s, cache: c, summaryTTL: summaryTTL, userStatsTTL: userStatsTTL}
}

type summaryParams struct {
	Event string     `json:"event"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// EventSummary returns count, unique users and device breakdown for one
// event name, optionally bounded to an inclusive time range.
func (s *Service) EventSummary(ctx context.Context, appID uuid.UUID, event string, start, end *time.Time) (*EventSummary, error) {
	fp, err := fingerprint(summaryParams{Event: event, Start: start, End: end})
	if err != nil {
		return nil, err
	}
	key := cache.QueryKey("eventSummary", appID, fp)

	return getOrCompute(ctx, s.cache, key, s.summaryTTL, func() (*EventSummary, error) {
		filter := store.EventFilter{AppID: appID, Event: event, Start: start, End: end}

		count, err := s.store.CountEvents(ctx, filter)
		if err != nil {
			return nil, err
		}
		uniqueUsers, err := s.store.CountDistinctUsers(ctx, filter)
		if err != nil {
			return nil, err
		}
		deviceData, err := s.store.GroupByDevice(ctx, filter)
		if err != nil {
			return nil, err
		}
		if deviceData == nil {
			deviceData = map[string]int64{}
		}

		return &EventSummary{
			Event:       event,
			Count:       count,
			UniqueUsers: uniqueUsers,
			DeviceData:  deviceData,
			Range:       TimeRange{Start: start, End: end},
		}, nil
	})
}

type userStatsParams struct {
	UserID string `json:"userId"`
}

// UserStats returns a user's event total, most recent events (up to 20),
// and device/IP details taken from the latest event.
func (s *Service) UserStats(ctx context.Context, appID uuid.UUID, userID string) (*UserStats, error) {
	fp, err := fingerprint(userStatsParams{UserID: userID})
	if err != nil {
		return nil, err
	}
	key := cache.QueryKey("userStats", appID, fp)

	return getOrCompute(ctx, s.cache, key, s.userStatsTTL, func() (*UserStats, error) {
		filter := store.EventFilter{AppID: appID, UserID: userID}

		total, err := s.store.CountEvents(ctx, filter)
		if err != nil {
			return nil, err
		}
		recent, err := s.store.FindRecentEvents(ctx, filter, recentEventsLimit)
		if err != nil {
			return nil, err
		}
		if recent == nil {
			recent = []*models.Event{}
		}

		stats := &UserStats{
			UserID:       userID,
			TotalEvents:  total,
			RecentEvents: recent,
		}
		if len(recent) > 0 {
			last := recent[0]
			stats.IPAddress = last.IPAddress
			if browser, ok := last.Metadata["browser"].(string); ok {
				stats.DeviceDetails.Browser = browser
			}
			if os, ok := last.Metadata["os"].(string); ok {
				stats.DeviceDetails.OS = os
			}
		}
		return stats, nil
	})
}

// getOrCompute is the cache-aside helper: return the cached value when
// present, otherwise compute, best-effort store, and return. Concurrent
// misses may both compute; the queries are idempotent reads, so the last
// writer's value wins.
func getOrCompute[T any](ctx context.Context, c cache.Cache, key string, ttl time.Duration, compute func() (*T, error)) (*T, error) {
	cached, found, err := c.Get(ctx, key)
	if err != nil {
		slog.Warn("cache lookup failed, computing directly", "key", key, "error", err)
	} else if found {
		var result T
		if err := json.Unmarshal(cached, &result); err == nil {
			return &result, nil
		}
		slog.Warn("discarding undecodable cache entry", "key", key)
	}

	result, err := compute()
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(result); err == nil {
		if err := c.Set(ctx, key, payload, ttl); err != nil {
			slog.Warn("cache write failed", "key", key, "error", err)
		}
	}

	return result, nil
}
