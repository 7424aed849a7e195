// Package authgate decides the execution role and session claims for a
// request against a resolved tenant. Credential failures are terminal:
// a request carrying an invalid credential is rejected outright, never
// downgraded to anonymous access.
package authgate

import (
	"context"
	"log/slog"
	"strings"

	"schemagate/internal/platform/metrics"
	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID  string
	TokenID string
	Role    string
}

// Authenticator verifies a bearer credential against a tenant's auth
// configuration. In strict mode it is also called with an empty token so
// the tenant's own policy decides whether anonymous access exists at all.
type Authenticator interface {
	Authenticate(ctx context.Context, cfg *models.TenantConfig, token string) (Identity, error)
}

// Decision carries the execution role and the session claims handed to
// downstream execution.
type Decision struct {
	Role   string
	Claims map[string]string
}

type Gate struct {
	auth    Authenticator
	strict  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithAuthenticator overrides the credential verifier.
func WithAuthenticator(a Authenticator) Option {
	return func(g *Gate) {
		g.auth = a
	}
}

// WithStrict forces strict admission for every tenant, not just the ones
// that opt in.
func WithStrict(strict bool) Option {
	return func(g *Gate) {
		g.strict = strict
	}
}

func New(opts ...Option) *Gate {
	g := &Gate{
		auth:   &JWTAuthenticator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit maps the request's credential to an execution role under cfg.
//
// No credential with a non-strict tenant yields the anonymous role. Any
// presented credential must verify; a failure is returned as
// CodeUnauthenticated with no anonymous fallback.
func (g *Gate) Admit(ctx context.Context, cfg *models.TenantConfig, sig models.Signals) (Decision, error) {
	token := bearerToken(sig.Authorization)

	claims := map[string]string{
		"database_id": cfg.DatabaseID,
		"ip":          sig.RemoteIP,
	}

	if token == "" && !g.strict && !cfg.StrictAuth {
		return Decision{Role: cfg.AnonRole, Claims: claims}, nil
	}

	id, err := g.auth.Authenticate(ctx, cfg, token)
	if err != nil {
		if g.metrics != nil {
			g.metrics.AuthFailures.Inc()
		}
		g.logger.Warn("credential rejected",
			"database_id", cfg.DatabaseID,
			"error", err,
		)
		if dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
			return Decision{}, err
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "credential rejected")
	}

	role := id.Role
	if role == "" {
		role = cfg.AuthRole
	}
	if id.UserID != "" {
		claims["user_id"] = id.UserID
	}
	if id.TokenID != "" {
		claims["token_id"] = id.TokenID
	}
	return Decision{Role: role, Claims: claims}, nil
}

// bearerToken extracts the credential from an Authorization header. The
// scheme comparison is case-insensitive; any other scheme is treated as
// no credential rather than a malformed one.
func bearerToken(header string) string {
	if len(header) < 7 {
		return ""
	}
	if !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
