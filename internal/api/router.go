package api

import (
	"net/http"

	mw "github.com/beaconhq/beacon/internal/api/middleware"
	"github.com/beaconhq/beacon/internal/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	IngestLimit int
	ReadLimit   int

	HealthHandler http.HandlerFunc

	RegisterAppHandler   http.HandlerFunc
	ListKeysHandler      http.HandlerFunc
	RevokeKeyHandler     http.HandlerFunc
	RegenerateKeyHandler http.HandlerFunc

	CollectEventHandler http.HandlerFunc
	EventSummaryHandler http.HandlerFunc
	UserStatsHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with the middleware stack and all routes.
// Key verification runs before rate limiting; the limiter meters by the
// verified key's prefix.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", deps.HealthHandler)

	// App registration and key management, behind placeholder dev auth.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireDevUser)

		r.Post("/api/v1/apps", deps.RegisterAppHandler)
		r.Get("/api/v1/apps/{appID}/keys", deps.ListKeysHandler)
		r.Post("/api/v1/keys/revoke", deps.RevokeKeyHandler)
		r.Post("/api/v1/keys/regenerate", deps.RegenerateKeyHandler)
	})

	// Ingestion: API key, then the higher ingest budget.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAPIKey)
		r.Use(deps.RateLimit.Scoped(ratelimit.ScopeIngest, deps.IngestLimit))

		r.Post("/api/v1/events", deps.CollectEventHandler)
	})

	// Analytics reads: API key, then the lower read budget.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireAPIKey)
		r.Use(deps.RateLimit.Scoped(ratelimit.ScopeRead, deps.ReadLimit))

		r.Get("/api/v1/analytics/event-summary", deps.EventSummaryHandler)
		r.Get("/api/v1/analytics/user-stats", deps.UserStatsHandler)
	})

	return r
}
