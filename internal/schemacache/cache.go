// Package schemacache holds the two-tier cache at the core of the gateway:
// tier 1 keeps lightweight TenantConfig snapshots with a TTL, tier 2 keeps
// the expensive compiled execution artifacts. At most one build runs per key
// at any time; concurrent callers attach to the in-flight build instead of
// duplicating it.
package schemacache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"schemagate/internal/platform/metrics"
	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// CompiledSchema is the opaque execution artifact bound 1:1 to a
// TenantConfig snapshot. Engine carries whatever the execution engine
// produced; this layer never inspects it.
type CompiledSchema struct {
	Config      models.TenantConfig
	Fingerprint string
	BuiltAt     time.Time
	Engine      any
}

// Builder compiles a TenantConfig into an executable schema. It is the
// expensive external collaborator this cache exists to amortize.
type Builder interface {
	Build(ctx context.Context, cfg models.TenantConfig) (*CompiledSchema, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, cfg models.TenantConfig) (*CompiledSchema, error)

func (f BuilderFunc) Build(ctx context.Context, cfg models.TenantConfig) (*CompiledSchema, error) {
	return f(ctx, cfg)
}

// ConfigFetch loads the TenantConfig for a key on a tier-1 miss.
type ConfigFetch func(ctx context.Context) (*models.TenantConfig, error)

// entry is the per-key build slot. Fields other than done are written only
// before done is closed; waiters read them only after.
type entry struct {
	done   chan struct{}
	schema *CompiledSchema
	err    error

	// guarded by Cache.mu
	databaseID  string
	invalidated bool
	lastAccess  time.Time
}

// Cache is the two-tier schema cache. Mutation of the shared maps happens
// only under mu; compiled entries are replaced wholesale, never edited.
type Cache struct {
	builder      Builder
	buildTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	configs    *gocache.Cache     // tier 1: key string -> models.TenantConfig
	fetchGroup singleflight.Group // dedupes tier-1 registry fetches per key

	mu      sync.Mutex
	entries map[models.ResolutionKey]*entry              // tier 2
	byDB    map[string]map[models.ResolutionKey]struct{} // database id -> keys in either tier
	gen     uint64                                       // bumped on every eviction
}

type Option func(c *Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithBuildTimeout bounds each schema build. The default is finite on
// purpose: a hung build must fail as unavailable, not wedge its key forever.
func WithBuildTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.buildTimeout = d
	}
}

// WithConfigTTL sets the tier-1 TTL for TenantConfig snapshots.
func WithConfigTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.configs = gocache.New(ttl, 2*ttl)
	}
}

// New creates the cache around the given schema builder.
func New(builder Builder, opts ...Option) *Cache {
	c := &Cache{
		builder:      builder,
		buildTimeout: 30 * time.Second,
		logger:       slog.Default(),
		configs:      gocache.New(5*time.Minute, 10*time.Minute),
		entries:      make(map[models.ResolutionKey]*entry),
		byDB:         make(map[string]map[models.ResolutionKey]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrBuild returns the compiled schema for key, building it at most once
// across concurrent callers. The build itself runs detached from the caller's
// context: a client disconnect never cancels work other waiters depend on.
func (c *Cache) GetOrBuild(ctx context.Context, key models.ResolutionKey, fetch ConfigFetch) (*CompiledSchema, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.lastAccess = time.Now()
		c.mu.Unlock()
		return c.wait(ctx, e)
	}

	e := &entry{done: make(chan struct{}), lastAccess: time.Now()}
	c.entries[key] = e
	c.mu.Unlock()

	go c.build(ctx, key, e, fetch)

	return c.wait(ctx, e)
}

// GetConfig returns only the tier-1 TenantConfig for key, fetching and
// caching it on a miss. Used where the compiled artifact is not needed, such
// as CORS preflight.
func (c *Cache) GetConfig(ctx context.Context, key models.ResolutionKey, fetch ConfigFetch) (*models.TenantConfig, error) {
	return c.config(ctx, key, fetch)
}

// wait blocks until the entry resolves or the caller gives up. Abandoning the
// wait does not abandon the build.
func (c *Cache) wait(ctx context.Context, e *entry) (*CompiledSchema, error) {
	select {
	case <-e.done:
		return e.schema, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// build is the single builder goroutine for a key. It runs on a context
// detached from the initiating request, bounded by the build timeout.
func (c *Cache) build(ctx context.Context, key models.ResolutionKey, e *entry, fetch ConfigFetch) {
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
	defer cancel()

	cfg, err := c.config(bctx, key, fetch)
	if err != nil {
		c.finish(key, e, nil, err)
		return
	}

	c.mu.Lock()
	e.databaseID = cfg.DatabaseID
	c.index(cfg.DatabaseID, key)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SchemaBuilds.Inc()
	}
	start := time.Now()

	schema, err := c.builder.Build(bctx, *cfg)
	if err != nil {
		if c.metrics != nil {
			c.metrics.SchemaBuildErrors.Inc()
		}
		c.finish(key, e, nil, dErrors.Wrap(err, dErrors.CodeBuildFailure, "schema build failed for "+key.String()))
		return
	}

	if c.metrics != nil {
		c.metrics.SchemaBuildSeconds.Observe(time.Since(start).Seconds())
	}
	c.finish(key, e, schema, nil)
}

// finish publishes the build outcome to all waiters and settles the slot. A
// failed build frees the slot so the next access retries. A build that was
// invalidated mid-flight still resolves its waiters but its artifact is not
// cached: the eviction must win even when it raced ahead of population.
func (c *Cache) finish(key models.ResolutionKey, e *entry, schema *CompiledSchema, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.schema = schema
	e.err = err

	if err != nil || e.invalidated {
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		if e.invalidated {
			c.configs.Delete(key.String())
		}
		c.unindex(e.databaseID, key)
	}

	close(e.done)
	c.gauge()
}

// config resolves the tier-1 TenantConfig, deduplicating concurrent registry
// fetches for the same key.
func (c *Cache) config(ctx context.Context, key models.ResolutionKey, fetch ConfigFetch) (*models.TenantConfig, error) {
	ck := key.String()
	if v, ok := c.configs.Get(ck); ok {
		if c.metrics != nil {
			c.metrics.ConfigCacheHits.Inc()
		}
		cfg := v.(models.TenantConfig)
		return &cfg, nil
	}

	if c.metrics != nil {
		c.metrics.ConfigCacheMiss.Inc()
	}

	v, err, _ := c.fetchGroup.Do(ck, func() (any, error) {
		c.mu.Lock()
		g0 := c.gen
		c.mu.Unlock()

		cfg, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		// Cache the snapshot only if no eviction landed during the fetch;
		// otherwise the fetched row may predate the change that triggered it.
		c.mu.Lock()
		if c.gen == g0 {
			c.configs.SetDefault(ck, *cfg)
			c.index(cfg.DatabaseID, key)
		}
		c.mu.Unlock()
		return *cfg, nil
	})
	if err != nil {
		return nil, err
	}

	cfg := v.(models.TenantConfig)
	return &cfg, nil
}

// index and unindex maintain the database-id -> keys map. Callers hold mu.
func (c *Cache) index(databaseID string, key models.ResolutionKey) {
	if databaseID == "" {
		return
	}
	keys := c.byDB[databaseID]
	if keys == nil {
		keys = make(map[models.ResolutionKey]struct{})
		c.byDB[databaseID] = keys
	}
	keys[key] = struct{}{}
}

func (c *Cache) unindex(databaseID string, key models.ResolutionKey) {
	if keys, ok := c.byDB[databaseID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byDB, databaseID)
		}
	}
}

// gauge refreshes the cached-schema gauge. Caller holds mu.
func (c *Cache) gauge() {
	if c.metrics == nil {
		return
	}
	ready := 0
	for _, e := range c.entries {
		select {
		case <-e.done:
			ready++
		default:
		}
	}
	c.metrics.CachedSchemas.Set(float64(ready))
}
