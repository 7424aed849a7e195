// Package corsgate decides cross-origin access for a request against a
// resolved tenant. A denied origin is never an error: the decision simply
// carries no allow-origin header and the browser enforces the block.
package corsgate

import (
	"log/slog"
	"net/url"
	"strings"

	"schemagate/internal/platform/metrics"
	"schemagate/internal/tenant/models"
)

// safeMethods and safeHeaders bound what a preflight response may echo
// back. Requested values outside these sets are dropped, not rejected.
var (
	safeMethods = []string{"GET", "POST", "OPTIONS"}
	safeHeaders = []string{
		"content-type",
		"authorization",
		"x-api-name",
		"x-database-id",
		"x-schemata",
		"x-meta-schema",
		"x-request-id",
	}
)

// Decision is the CORS outcome for one request. When Allowed is false the
// handler omits the allow-origin header entirely.
type Decision struct {
	Allowed      bool
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
}

type Gate struct {
	fallbackOrigin string
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(g *Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithFallbackOrigin sets the gateway-wide fallback: "*" allows any
// origin, a specific URL allows only an exact match, empty disables the
// rung.
func WithFallbackOrigin(origin string) Option {
	return func(g *Gate) {
		g.fallbackOrigin = origin
	}
}

func New(opts ...Option) *Gate {
	g := &Gate{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Decide walks the allow ladder for the request origin. cfg may be nil
// when the tenant could not be resolved; the gateway-level rungs still
// apply so preflights get a usable answer.
//
// Ladder, first match wins: localhost origins, then the gateway fallback,
// then the tenant allow-list (module origins plus registered domains).
func (g *Gate) Decide(cfg *models.TenantConfig, sig models.Signals) Decision {
	origin := sig.Origin
	if origin == "" {
		// Same-origin or non-browser traffic, nothing to decide.
		return Decision{}
	}

	if isLocalhost(origin) {
		return g.allow(origin, sig)
	}

	switch g.fallbackOrigin {
	case "":
	case "*":
		return g.allow("*", sig)
	case origin:
		return g.allow(origin, sig)
	}

	if cfg != nil && g.tenantAllows(*cfg, origin) {
		return g.allow(origin, sig)
	}

	if g.metrics != nil {
		g.metrics.CORSDenied.Inc()
	}
	g.logger.Debug("origin denied", "origin", origin)
	return Decision{}
}

func (g *Gate) allow(allowOrigin string, sig models.Signals) Decision {
	return Decision{
		Allowed:      true,
		AllowOrigin:  allowOrigin,
		AllowMethods: echoAllowed([]string{sig.RequestedMethod}, safeMethods, strings.ToUpper),
		AllowHeaders: echoAllowed(sig.RequestedHeaders, safeHeaders, strings.ToLower),
	}
}

// tenantAllows checks the union of the CORS module's explicit origins and
// the tenant's registered host. Entries with a scheme must match the full
// origin; bare entries match the origin's hostname.
func (g *Gate) tenantAllows(cfg models.TenantConfig, origin string) bool {
	host := originHostname(origin)

	if mod, ok := cfg.Module(models.ModuleCORS); ok {
		for _, entry := range splitList(mod.Config["origins"]) {
			if strings.Contains(entry, "://") {
				if strings.EqualFold(entry, origin) {
					return true
				}
				continue
			}
			if strings.EqualFold(entry, host) {
				return true
			}
		}
	}

	if h := cfg.Host(); h != "" && strings.EqualFold(h, host) {
		return true
	}
	return false
}

// echoAllowed intersects the preflight request list with the safe set,
// preserving safe-set casing.
func echoAllowed(requested []string, safe []string, canon func(string) string) string {
	var out []string
	for _, item := range requested {
		item = canon(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		for _, s := range safe {
			if item == s {
				out = append(out, s)
				break
			}
		}
	}
	return strings.Join(out, ", ")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLocalhost(origin string) bool {
	return strings.EqualFold(originHostname(origin), "localhost")
}

func originHostname(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return origin
	}
	return u.Hostname()
}
