package authgate

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// JWTAuthenticator verifies HS256 bearer tokens against the tenant's auth
// module. The signing secret is per tenant, so a token minted for one
// tenant never verifies against another.
type JWTAuthenticator struct{}

type sessionClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, cfg *models.TenantConfig, token string) (Identity, error) {
	mod, ok := cfg.Module(models.ModuleAuth)
	if !ok {
		if token == "" {
			// Strict tenant with no auth module: nothing can grant access.
			return Identity{}, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
		}
		return Identity{}, dErrors.New(dErrors.CodeConfiguration, "tenant has no auth module")
	}
	secret := mod.Config["secret"]
	if secret == "" {
		return Identity{}, dErrors.New(dErrors.CodeConfiguration, "auth module has no signing secret")
	}
	if token == "" {
		return Identity{}, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer := mod.Config["issuer"]; issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeUnauthenticated, "invalid token")
	}
	if !parsed.Valid {
		return Identity{}, dErrors.New(dErrors.CodeUnauthenticated, "invalid token")
	}

	id := Identity{
		UserID:  claims.Subject,
		TokenID: claims.ID,
		Role:    claims.Role,
	}
	if id.UserID == "" {
		return Identity{}, dErrors.New(dErrors.CodeUnauthenticated, "token missing subject")
	}
	return id, nil
}
