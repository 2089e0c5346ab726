// AngelaMos | 2026
// routes.go

package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/sessionguard/internal/admin"
	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/config"
	"github.com/carterperez-dev/sessionguard/internal/health"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
	"github.com/carterperez-dev/sessionguard/internal/user"
)

type routes struct {
	cfg      *config.Config
	logger   *slog.Logger
	redis    *redis.Client
	verifier middleware.TokenVerifier
	jwks     http.HandlerFunc
	health   *health.Handler
	auth     *auth.Handler
	users    *user.Handler
	admin    *admin.Handler
}

func mountRoutes(router chi.Router, rt routes) {
	limit := func(requests, burst int, key func(*http.Request) string, failOpen bool) func(http.Handler) http.Handler {
		return middleware.NewRateLimiter(rt.redis, middleware.RateLimitConfig{
			Limit:    middleware.PerWindow(requests, burst, rt.cfg.RateLimit.Window),
			KeyFunc:  key,
			Logger:   rt.logger,
			FailOpen: failOpen,
		}).Handler
	}

	rl := rt.cfg.RateLimit

	router.Use(
		middleware.RequestID,
		middleware.Tracing,
		middleware.Logger(rt.logger),
		limit(rl.Requests, rl.Burst, middleware.KeyByIP, true),
		middleware.SecurityHeaders(rt.cfg.IsProduction()),
		middleware.CORS(rt.cfg.CORS),
	)

	rt.health.RegisterRoutes(router)
	router.Get("/.well-known/jwks.json", rt.jwks)

	authenticated := chi.Chain(
		middleware.Authenticator(rt.verifier),
		limit(rl.Requests, rl.Burst, middleware.KeyByUserAndEndpoint, true),
	).Handler
	sensitive := limit(rl.AuthRequests, rl.AuthBurst, middleware.KeyByIPAndEndpoint, false)

	router.Route("/v1", func(r chi.Router) {
		rt.auth.RegisterRoutes(r, authenticated, sensitive)
		rt.users.RegisterRoutes(r, authenticated)
		rt.users.RegisterAdminRoutes(r, authenticated, middleware.RequireAdmin)
		rt.admin.RegisterRoutes(r, authenticated, middleware.RequireAdmin)
	})
}
