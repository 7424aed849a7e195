package config

import (
	"os"
	"time"
)

// Mode selects which tenant visibility a gateway process serves.
type Mode string

const (
	ModePublic  Mode = "public"
	ModePrivate Mode = "private"
)

// Server captures gateway process level configuration.
type Server struct {
	Addr        string
	Mode        Mode
	Environment string

	// DatabaseURL points at the tenant metadata store. Empty disables the
	// registry entirely and the gateway serves the static fallback config.
	DatabaseURL string

	// RedisURL points at the invalidation pub/sub transport. Empty disables
	// cross-process invalidation; local flushes still work.
	RedisURL string

	RegistryTimeout time.Duration
	BuildTimeout    time.Duration
	ConfigCacheTTL  time.Duration

	StrictAuth bool
	AnonRole   string
	AuthRole   string

	// CORSFallbackOrigin is the gateway-wide rung-2 origin: "*" allows any
	// origin, a specific URL allows only an exact match, empty falls through
	// to the per-tenant allow-list.
	CORSFallbackOrigin string

	// AdminSecretHash is the bcrypt hash guarding the flush endpoint.
	// Empty disables the administrative surface.
	AdminSecretHash string

	// FallbackConfigPath names the YAML file with the static tenant served
	// when the registry is disabled.
	FallbackConfigPath string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:               envOr("SCHEMAGATE_ADDR", ":8080"),
		Mode:               ModePublic,
		Environment:        envOr("ENVIRONMENT", "development"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RegistryTimeout:    durationOr("REGISTRY_TIMEOUT", 5*time.Second),
		BuildTimeout:       durationOr("BUILD_TIMEOUT", 30*time.Second),
		ConfigCacheTTL:     durationOr("CONFIG_CACHE_TTL", 5*time.Minute),
		StrictAuth:         os.Getenv("STRICT_AUTH") == "true",
		AnonRole:           envOr("ANON_ROLE", "anonymous"),
		AuthRole:           envOr("AUTH_ROLE", "authenticated"),
		CORSFallbackOrigin: os.Getenv("CORS_FALLBACK_ORIGIN"),
		AdminSecretHash:    os.Getenv("ADMIN_SECRET_HASH"),
		FallbackConfigPath: os.Getenv("FALLBACK_CONFIG"),
	}

	if os.Getenv("SCHEMAGATE_MODE") == string(ModePrivate) {
		cfg.Mode = ModePrivate
	}

	return cfg
}

// RegistryEnabled reports whether tenant resolution goes through the metadata
// store rather than the static fallback.
func (s Server) RegistryEnabled() bool {
	return s.DatabaseURL != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
