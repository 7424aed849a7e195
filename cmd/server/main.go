package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"schemagate/internal/authgate"
	"schemagate/internal/corsgate"
	"schemagate/internal/gateway"
	"schemagate/internal/gateway/tracer"
	"schemagate/internal/invalidation"
	"schemagate/internal/platform/config"
	"schemagate/internal/platform/database"
	"schemagate/internal/platform/health"
	"schemagate/internal/platform/logger"
	"schemagate/internal/platform/metrics"
	"schemagate/internal/platform/redis"
	"schemagate/internal/resolver"
	"schemagate/internal/schemacache"
	"schemagate/internal/tenant/models"
	"schemagate/internal/tenant/store"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Admission logic lives in the internal packages.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	log.Info("initializing schemagate",
		"addr", cfg.Addr,
		"mode", string(cfg.Mode),
		"registry", cfg.RegistryEnabled(),
	)

	m := metrics.New()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		return err
	}
	defer closeQuiet(pool, log)

	rdb, err := redis.New(redis.DefaultConfig(cfg.RedisURL))
	if err != nil {
		return err
	}
	defer closeQuiet(rdb, log)

	res, err := newResolver(cfg, pool, log, m)
	if err != nil {
		return err
	}

	cache := schemacache.New(schemacache.NewSnapshotBuilder(),
		schemacache.WithLogger(log),
		schemacache.WithMetrics(m),
		schemacache.WithBuildTimeout(cfg.BuildTimeout),
		schemacache.WithConfigTTL(cfg.ConfigCacheTTL),
	)

	var bus *invalidation.Bus
	if rdb != nil {
		bus = invalidation.New(rdb.Client, cache,
			invalidation.WithLogger(log),
			invalidation.WithMetrics(m),
		)
	}

	authGate := authgate.New(
		authgate.WithLogger(log),
		authgate.WithMetrics(m),
		authgate.WithStrict(cfg.StrictAuth),
	)
	corsGate := corsgate.New(
		corsgate.WithLogger(log),
		corsgate.WithMetrics(m),
		corsgate.WithFallbackOrigin(cfg.CORSFallbackOrigin),
	)

	pipeline := gateway.NewPipeline(res, cache, authGate, corsGate,
		gateway.WithLogger(log),
		gateway.WithTracer(tracer.NewOTel()),
	)

	hh := health.New(cfg.Environment, string(cfg.Mode))
	hh.RegisterDetail("cached_schemas", func() any { return cache.Len() })
	if pool != nil {
		hh.RegisterCheck("registry", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if rdb != nil {
		hh.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rdb.Health(ctx)
		})
	}

	var publisher gateway.Publisher
	if bus != nil {
		publisher = bus
	}
	admin := gateway.NewAdminHandler(cfg.AdminSecretHash, cache, publisher, log)

	router := gateway.NewRouter(gateway.RouterDeps{
		Handler: gateway.NewHandler(pipeline, nil, log),
		Admin:   admin,
		Health:  hh,
		Logger:  log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if bus != nil {
		g.Go(func() error {
			if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if rdb != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					rdb.RecordPoolStats()
				}
			}
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Drop cached artifacts so a restart never serves entries that
		// missed invalidations while the process was down.
		cache.FlushAll()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("server stopped")
	return nil
}

// newResolver picks the tenant source: the registry when a database is
// configured, the static fallback config otherwise.
func newResolver(cfg config.Server, pool *database.Pool, log *slog.Logger, m *metrics.Metrics) (*resolver.Resolver, error) {
	opts := []resolver.Option{
		resolver.WithLogger(log),
		resolver.WithMetrics(m),
		resolver.WithTimeout(cfg.RegistryTimeout),
	}

	var fallback *models.TenantConfig
	if cfg.FallbackConfigPath != "" {
		loaded, err := store.LoadStatic(cfg.FallbackConfigPath)
		if err != nil {
			return nil, err
		}
		fallback = loaded
	}
	if fallback != nil {
		opts = append(opts, resolver.WithFallback(fallback))
	}

	var registry resolver.Registry
	if pool != nil {
		registry = store.NewPostgres(pool.DB())
	}
	return resolver.New(registry, cfg.Mode, opts...), nil
}

type closer interface {
	Close() error
}

func closeQuiet(c closer, log *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("close failed", "error", err)
	}
}
