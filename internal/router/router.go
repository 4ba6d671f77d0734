package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-identity/internal/config"
	"go-identity/internal/handler"
	"go-identity/internal/metrics"
	"go-identity/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Profile *handler.ProfileHandler
	// Health is optional; nil reports liveness only.
	Health func(ctx context.Context) error
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(m.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", handler.Health(h.Health))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimitMiddleware.Handler)
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.Post("/logout", h.Auth.Logout)
			auth.Post("/password-reset", h.Auth.RequestPasswordReset)
			auth.Post("/password-reset/confirm", h.Auth.ConfirmPasswordReset)

			auth.Group(func(private chi.Router) {
				private.Use(authMiddleware.RequireAuth)
				private.Get("/me", h.Profile.Me)
				private.Patch("/me", h.Profile.UpdateMe)
				private.Post("/change-password", h.Auth.ChangePassword)
			})
		})
	})

	return r
}
