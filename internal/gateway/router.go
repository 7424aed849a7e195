package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schemagate/internal/platform/health"
	"schemagate/internal/platform/middleware"
)

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Handler *Handler
	Admin   *AdminHandler
	Health  *health.Handler
	Logger  *slog.Logger
}

// NewRouter wires the request-facing, administrative, and operational
// endpoints with the shared middleware stack.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	// Query surface. GET serves persisted/GET-style queries, OPTIONS only
	// answers preflights.
	r.Post("/graphql", deps.Handler.HandleQuery)
	r.Get("/graphql", deps.Handler.HandleQuery)
	r.Options("/graphql", deps.Handler.HandlePreflight)
	r.Options("/*", deps.Handler.HandlePreflight)

	if deps.Admin != nil {
		r.Post("/admin/flush", deps.Admin.HandleFlush)
	}

	if deps.Health != nil {
		deps.Health.Register(r)
	}

	r.Handle("/metrics", promhttp.Handler())

	return r
}
