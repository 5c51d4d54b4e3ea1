// Package ratelimit enforces fixed 1-second-window budgets on a shared
// counter store. Every request increments the counter for its
// (scope, identity, current-second) tuple; the first request in a window sets
// a 1-second expiry so stale windows self-clean.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/beaconhq/beacon/internal/cache"
)

// Traffic scopes with independent budgets.
const (
	ScopeIngest = "ingest"
	ScopeRead   = "read"
)

// AnonymousIdentity is the shared bucket for unauthenticated callers.
const AnonymousIdentity = "anon"

const window = time.Second

// Limiter decides admission per identity and scope.
type Limiter struct {
	counters cache.Cache
	now      func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock used for window bucketing.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a Limiter backed by the given counter store.
func NewLimiter(counters cache.Cache, opts ...Option) *Limiter {
	l := &Limiter{counters: counters, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether the request fits within limit for the current
// 1-second window. A counter-store error fails closed: admitting unmetered
// traffic on an outage would defeat the limiter.
func (l *Limiter) Allow(ctx context.Context, scope, identity string, limit int) (bool, error) {
	if identity == "" {
		identity = AnonymousIdentity
	}

	key := cache.RateLimitKey(scope, identity, l.now().Unix())
	count, err := l.counters.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}

	if count == 1 {
		if err := l.counters.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("set rate counter expiry: %w", err)
		}
	}

	return count <= int64(limit), nil
}
