package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-service/internal/config"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.NewProxyTrust(cfg.TrustedProxies).Handler)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", handlers.Health.Check)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/signup", handlers.Auth.Signup)
			auth.Post("/login", handlers.Auth.Login)
			auth.Post("/refresh", handlers.Auth.Refresh)
			auth.Post("/verify-email", handlers.Auth.VerifyEmail)
			auth.With(authMiddleware.RequireAuth).Get("/me", handlers.Auth.Me)
		})

		if handlers.Audit != nil {
			api.Route("/admin", func(admin chi.Router) {
				admin.Use(authMiddleware.RequireAuth)
				admin.Use(middleware.RequireRole("admin"))
				admin.Get("/audit", handlers.Audit.List)
			})
		}
	})

	return r
}
