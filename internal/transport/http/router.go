// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services without embedding business logic so transport concerns remain
// isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credvault/internal/platform/health"
	"credvault/internal/platform/middleware"
)

// RouterConfig carries the handlers and cross-cutting pieces the router
// wires together.
type RouterConfig struct {
	Credentials *CredentialHandler
	Disclosure  *DisclosureHandler
	Health      *health.Handler
	Logger      *slog.Logger
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	cfg.Credentials.Register(r)
	cfg.Disclosure.Register(r)

	if cfg.Health != nil {
		cfg.Health.Register(r)
		r.Get("/healthz", cfg.Health.HandleLiveness)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
