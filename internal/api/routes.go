package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteConfig struct {
	MetricsEnabled bool
	RateLimit      int
	AdminUser      string
	AdminPassword  string
}

func SetupRoutes(app *fiber.App, handler *Handler, cfg RouteConfig) {
	app.Use(RequestID())
	app.Use(ErrorHandler())

	// Unlimited: probes and scrapes.
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)
	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(cfg.RateLimit))
	v1.Use(PrometheusMiddleware())

	v1.Get("/performance", handler.ListPerformance)
	v1.Get("/matches", handler.ListMatches)

	// Admin routes exist only where a runner is wired and a password is set.
	if handler.runner == nil || cfg.AdminPassword == "" {
		return
	}
	admin := v1.Group("/admin")
	admin.Use(BasicAuth(cfg.AdminUser, cfg.AdminPassword))
	admin.Post("/run", handler.TriggerRun)
	admin.Get("/runs/last", handler.LastRun)
}
