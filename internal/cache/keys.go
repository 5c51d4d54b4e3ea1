package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// RateLimitKey builds the counter key for one identity in one 1-second
// window. Scope separates ingest traffic from analytics reads so each gets
// an independent budget.
func RateLimitKey(scope, identity string, epochSec int64) string {
	return fmt.Sprintf("rl:%s:%s:%d", scope, identity, epochSec)
}

// QueryKey builds the cache key for a cache-aside analytics query.
// Fingerprint is a deterministic encoding of the query's semantic parameters.
func QueryKey(queryName string, appID uuid.UUID, fingerprint string) string {
	return fmt.Sprintf("cache:%s:%s:%s", queryName, appID, fingerprint)
}
