// Package gateway composes the per-request admission pipeline: resolve the
// tenant, obtain its compiled schema, decide the execution role, decide
// cross-origin access, and hand the bundle to the execution engine.
package gateway

import (
	"context"
	"log/slog"

	"schemagate/internal/authgate"
	"schemagate/internal/corsgate"
	"schemagate/internal/gateway/tracer"
	"schemagate/internal/schemacache"
	"schemagate/internal/tenant/models"
)

// Resolver maps request signals to a cache key and loads tenant configs.
type Resolver interface {
	Key(sig models.Signals) (models.ResolutionKey, error)
	Fetch(ctx context.Context, key models.ResolutionKey) (*models.TenantConfig, error)
}

// SchemaCache is the two-tier cache surface consumed per request.
type SchemaCache interface {
	GetOrBuild(ctx context.Context, key models.ResolutionKey, fetch schemacache.ConfigFetch) (*schemacache.CompiledSchema, error)
	GetConfig(ctx context.Context, key models.ResolutionKey, fetch schemacache.ConfigFetch) (*models.TenantConfig, error)
}

// Handoff is the admission bundle handed to the execution engine.
type Handoff struct {
	Config models.TenantConfig
	Schema *schemacache.CompiledSchema
	Auth   authgate.Decision
	CORS   corsgate.Decision
}

// Pipeline runs the admission stages in order. Each stage failure is
// terminal for the request; nothing downstream runs after a failure.
type Pipeline struct {
	resolver Resolver
	cache    SchemaCache
	auth     *authgate.Gate
	cors     *corsgate.Gate
	tracer   tracer.Tracer
	logger   *slog.Logger
}

type PipelineOption func(p *Pipeline)

func WithTracer(t tracer.Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func NewPipeline(r Resolver, c SchemaCache, auth *authgate.Gate, cors *corsgate.Gate, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver: r,
		cache:    c,
		auth:     auth,
		cors:     cors,
		tracer:   tracer.NewNoop(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Admit runs resolution, schema lookup, auth, and CORS for one request.
func (p *Pipeline) Admit(ctx context.Context, sig models.Signals) (h Handoff, err error) {
	ctx, span := p.tracer.Start(ctx, tracer.SpanAdmit)
	defer func() { span.End(err) }()

	key, err := p.resolveKey(ctx, sig)
	if err != nil {
		return Handoff{}, err
	}
	span.SetAttributes(
		tracer.String(tracer.AttrKeyKind, string(key.Kind)),
		tracer.String(tracer.AttrDatabaseID, key.DatabaseID),
	)

	schema, err := p.schema(ctx, key)
	if err != nil {
		return Handoff{}, err
	}
	span.SetAttributes(tracer.String(tracer.AttrFingerprint, schema.Fingerprint))

	auth, err := p.admitAuth(ctx, schema.Config, sig)
	if err != nil {
		return Handoff{}, err
	}

	cors := p.decideCORS(ctx, schema.Config, sig)

	return Handoff{
		Config: schema.Config,
		Schema: schema,
		Auth:   auth,
		CORS:   cors,
	}, nil
}

// Preflight resolves just enough to answer an OPTIONS request: the tenant
// config when one resolves, the gateway-level CORS rungs otherwise. It
// never triggers a schema build.
func (p *Pipeline) Preflight(ctx context.Context, sig models.Signals) corsgate.Decision {
	var cfg *models.TenantConfig
	if key, err := p.resolver.Key(sig); err == nil {
		cfg, _ = p.cache.GetConfig(ctx, key, func(ctx context.Context) (*models.TenantConfig, error) {
			return p.resolver.Fetch(ctx, key)
		})
	}
	return p.cors.Decide(cfg, sig)
}

func (p *Pipeline) resolveKey(ctx context.Context, sig models.Signals) (k models.ResolutionKey, err error) {
	_, span := p.tracer.Start(ctx, tracer.SpanResolve)
	defer func() { span.End(err) }()
	return p.resolver.Key(sig)
}

func (p *Pipeline) schema(ctx context.Context, key models.ResolutionKey) (s *schemacache.CompiledSchema, err error) {
	ctx, span := p.tracer.Start(ctx, tracer.SpanSchema)
	defer func() { span.End(err) }()
	return p.cache.GetOrBuild(ctx, key, func(ctx context.Context) (*models.TenantConfig, error) {
		return p.resolver.Fetch(ctx, key)
	})
}

func (p *Pipeline) admitAuth(ctx context.Context, cfg models.TenantConfig, sig models.Signals) (d authgate.Decision, err error) {
	ctx, span := p.tracer.Start(ctx, tracer.SpanAuth)
	defer func() { span.End(err) }()
	d, err = p.auth.Admit(ctx, &cfg, sig)
	if err == nil {
		span.SetAttributes(tracer.String(tracer.AttrRole, d.Role))
	}
	return d, err
}

func (p *Pipeline) decideCORS(ctx context.Context, cfg models.TenantConfig, sig models.Signals) corsgate.Decision {
	_, span := p.tracer.Start(ctx, tracer.SpanCORS,
		tracer.String(tracer.AttrOrigin, sig.Origin),
	)
	d := p.cors.Decide(&cfg, sig)
	span.SetAttributes(tracer.Bool(tracer.AttrAllowed, d.Allowed))
	span.End(nil)
	return d
}
