package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"github.com/frahmantamala/upi-sandbox/internal/transport"
	"github.com/frahmantamala/upi-sandbox/internal/transport/middleware"
	"github.com/frahmantamala/upi-sandbox/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type RouterConfig struct {
	AllowedOrigins string
	// MetricsPath is left empty when metrics are disabled.
	MetricsPath    string
	MetricsHandler http.Handler
	OpenAPIPath    string
}

func RegisterAllRoutes(router chi.Router, cfg RouterConfig, sandboxHandler *sandbox.Handler, reporter HealthReporter, logger *slog.Logger) {
	healthHandler := NewHealthHandler(transport.NewBaseHandler(logger), reporter)

	// Apply global middleware
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	openAPIPath := cfg.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Get("/health", healthHandler.healthCheckHandler)
	router.Get("/ping", healthHandler.pingHandler)

	if cfg.MetricsPath != "" && cfg.MetricsHandler != nil {
		router.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	}

	router.Route("/v1", sandboxHandler.Routes)
}
