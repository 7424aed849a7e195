// Package resolver decides which tenant configuration serves a request. It
// evaluates identification signals through a fixed precedence ladder and
// fetches the matching config from the metadata registry, enforcing the
// gateway's visibility mode.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"schemagate/internal/platform/config"
	"schemagate/internal/platform/metrics"
	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// metaSchemaNames are the registry's own introspection schemas, served when a
// request asks for the meta-schema only.
var metaSchemaNames = []string{"meta"}

// Registry is the metadata store surface the resolver needs. Implemented by
// the tenant store; kept small so tests can stub it.
type Registry interface {
	FindByAPIName(ctx context.Context, apiName, databaseID string) (*models.TenantConfig, error)
	FindByHost(ctx context.Context, host string, vis models.Visibility) (*models.TenantConfig, error)
	ValidSchemas(ctx context.Context, databaseID string, schemas []string) ([]string, error)
	Database(ctx context.Context, databaseID string) (*models.Database, error)
}

// Resolver derives resolution keys and fetches tenant configs.
type Resolver struct {
	registry Registry // nil when the registry is disabled
	fallback *models.TenantConfig
	mode     config.Mode
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(r *Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithFallback sets the static tenant config served when the registry is
// disabled (registry == nil).
func WithFallback(cfg *models.TenantConfig) Option {
	return func(r *Resolver) {
		r.fallback = cfg
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// New constructs a resolver. A nil registry switches the gateway to static
// fallback resolution.
func New(registry Registry, mode config.Mode, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		mode:     mode,
		timeout:  5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key runs the precedence chain over the request signals and returns the
// first matching ResolutionKey. No match is a not_found outcome.
func (r *Resolver) Key(sig models.Signals) (models.ResolutionKey, error) {
	if r.registry == nil {
		// Registry disabled: the static config serves every request,
		// Host header ignored.
		return models.StaticKey(), nil
	}

	for _, strategy := range registryChain {
		if key, ok := strategy(sig, r.mode); ok {
			return key, nil
		}
	}
	return models.ResolutionKey{}, dErrors.New(dErrors.CodeNotFound, "no tenant identification signals")
}

// Fetch loads and validates the TenantConfig for a previously derived key.
// Lookups run under the registry timeout; transport failures surface as
// unavailable so callers can distinguish "doesn't exist" from "can't find
// out right now".
func (r *Resolver) Fetch(ctx context.Context, key models.ResolutionKey) (*models.TenantConfig, error) {
	if key.Kind == models.KeyStatic {
		if r.fallback == nil {
			return nil, dErrors.New(dErrors.CodeConfiguration, "registry disabled and no fallback config loaded")
		}
		cfg := *r.fallback
		return &cfg, nil
	}

	if r.registry == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "registry lookups require a registry")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cfg, err := r.fetch(ctx, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = dErrors.Wrap(err, dErrors.CodeUnavailable, "registry lookup timed out")
		}
		r.observe(err)
		return nil, err
	}

	r.count("resolved")
	return cfg, nil
}

func (r *Resolver) fetch(ctx context.Context, key models.ResolutionKey) (*models.TenantConfig, error) {
	switch key.Kind {
	case models.KeyAPIName:
		return r.registry.FindByAPIName(ctx, key.APIName, key.DatabaseID)

	case models.KeySchemaList:
		return r.fetchSchemaList(ctx, key)

	case models.KeyMeta:
		db, err := r.registry.Database(ctx, key.DatabaseID)
		if err != nil {
			return nil, err
		}
		return configFromDatabase(db, metaSchemaNames), nil

	case models.KeyDomain:
		vis := models.VisibilityPublic
		if r.mode == config.ModePrivate {
			vis = models.VisibilityPrivate
		}
		return r.registry.FindByHost(ctx, key.Domain, vis)

	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown resolution key kind")
	}
}

// fetchSchemaList validates that every named schema exists for the database.
// A single missing schema fails the whole selection; there is no partial
// match.
func (r *Resolver) fetchSchemaList(ctx context.Context, key models.ResolutionKey) (*models.TenantConfig, error) {
	requested := models.CanonicalSchemas(splitSchemas(key.Schemas))
	valid, err := r.registry.ValidSchemas(ctx, key.DatabaseID, requested)
	if err != nil {
		return nil, err
	}
	if len(valid) != len(requested) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no valid schemas")
	}

	db, err := r.registry.Database(ctx, key.DatabaseID)
	if err != nil {
		return nil, err
	}
	return configFromDatabase(db, requested), nil
}

func configFromDatabase(db *models.Database, schemas []string) *models.TenantConfig {
	return &models.TenantConfig{
		DatabaseID: db.ID,
		Visibility: models.VisibilityPrivate,
		Schemas:    schemas,
		AnonRole:   db.AnonRole,
		AuthRole:   db.AuthRole,
		StrictAuth: db.StrictAuth,
	}
}

// observe logs configuration failures loudly; not_found stays quiet to avoid
// noisy logs for unknown hosts.
func (r *Resolver) observe(err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		r.count("not_found")
	case dErrors.CodeUnavailable:
		r.count("unavailable")
		r.logger.Warn("registry unavailable", "error", err)
	case dErrors.CodeConfiguration:
		r.count("configuration")
		r.logger.Error("tenant configuration error", "error", err)
	default:
		r.count("error")
	}
}

func (r *Resolver) count(outcome string) {
	if r.metrics != nil {
		r.metrics.Resolutions.WithLabelValues(outcome).Inc()
	}
}

func splitSchemas(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
