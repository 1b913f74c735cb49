package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adhttp "motelhub/internal/advertisement/transport/http"
	"motelhub/internal/config"
	otphttp "motelhub/internal/otp/transport/http"
	"motelhub/pkg/middleware"
)

func newRouter(cfg *config.Config, database *sqlx.DB, ads *adhttp.Handler, otp *otphttp.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.MetricsMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(database))

	// Публичные роуты
	r.Route("/api", func(api chi.Router) {
		api.Get("/ads", ads.ListActive)
		api.With(middleware.ValidateRequest).Post("/ads/{id}/events", ads.TrackEvent)
		api.Get("/ads/{id}/click", ads.Click)

		api.Group(func(g chi.Router) {
			g.Use(middleware.ValidateRequest)
			g.Post("/otp/request", otp.RequestCode)
			g.Post("/otp/verify", otp.VerifyCode)
		})

		api.With(middleware.JWTAuth(cfg.JWTSecret)).Get("/auth/session", otp.Session)

		// 🔐 Админка
		api.Route("/admin/ads", func(admin chi.Router) {
			admin.Use(middleware.BasicAuth("admin", cfg.AdminUsername, cfg.AdminPasswordHash))
			admin.Use(middleware.ValidateRequest)
			admin.Post("/", ads.Create)
			admin.Get("/{id}", ads.Get)
			admin.Patch("/{id}/status", ads.UpdateStatus)
			admin.Get("/{id}/stats", ads.Stats)
		})
	})

	r.With(middleware.BasicAuth("metrics", cfg.AdminUsername, cfg.AdminPasswordHash)).
		Handle("/metrics", promhttp.Handler())

	return r
}
