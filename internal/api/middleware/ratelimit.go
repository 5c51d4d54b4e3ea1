package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/beaconhq/beacon/internal/api/response"
	"github.com/beaconhq/beacon/internal/ratelimit"
)

// RateLimit enforces per-second budgets after authentication. Identity is
// the authenticated key's prefix, or the shared anonymous bucket.
type RateLimit struct {
	limiter *ratelimit.Limiter
}

// NewRateLimit creates the RateLimit middleware.
func NewRateLimit(l *ratelimit.Limiter) *RateLimit {
	return &RateLimit{limiter: l}
}

// Scoped returns middleware enforcing limit requests per second for the
// given traffic scope. A counter-store outage rejects the request rather
// than admitting unmetered traffic.
func (rl *RateLimit) Scoped(scope string, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := GetKeyPrefix(r)

			allowed, err := rl.limiter.Allow(r.Context(), scope, identity, limit)
			if err != nil {
				response.Error(w, http.StatusServiceUnavailable,
					"INTERNAL_ERROR", "Rate limiter unavailable", nil)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if !allowed {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Reset",
					strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))
				response.Error(w, http.StatusTooManyRequests,
					"RATE_LIMITED", "Rate limit exceeded", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
