package authgate

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

const signingSecret = "test-signing-secret"

func tenantWithAuth(strict bool) *models.TenantConfig {
	return &models.TenantConfig{
		DatabaseID: "db-1",
		Visibility: models.VisibilityPublic,
		Schemas:    []string{"public"},
		AnonRole:   "anon",
		AuthRole:   "web_user",
		StrictAuth: strict,
		Modules: []models.Module{{
			Kind:   models.ModuleAuth,
			Config: map[string]string{"secret": signingSecret},
		}},
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdmitAnonymous(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	d, err := g.Admit(context.Background(), cfg, models.Signals{RemoteIP: "10.0.0.9"})
	require.NoError(t, err)

	assert.Equal(t, "anon", d.Role)
	assert.Equal(t, "db-1", d.Claims["database_id"])
	assert.Equal(t, "10.0.0.9", d.Claims["ip"])
	assert.NotContains(t, d.Claims, "user_id")
}

func TestAdmitValidToken(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	token := signToken(t, signingSecret, jwt.MapClaims{
		"sub": "user-42",
		"jti": "tok-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	d, err := g.Admit(context.Background(), cfg, models.Signals{
		Authorization: "Bearer " + token,
		RemoteIP:      "10.0.0.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "web_user", d.Role)
	assert.Equal(t, "user-42", d.Claims["user_id"])
	assert.Equal(t, "tok-7", d.Claims["token_id"])
}

func TestAdmitTokenRoleClaimWins(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	token := signToken(t, signingSecret, jwt.MapClaims{
		"sub":  "user-42",
		"role": "editor",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	d, err := g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer " + token})
	require.NoError(t, err)
	assert.Equal(t, "editor", d.Role)
}

func TestAdmitInvalidTokenNeverDowngrades(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	cases := map[string]string{
		"wrong secret": signToken(t, "other-secret", jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		}),
		"expired": signToken(t, signingSecret, jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"garbage": "not.a.token",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer " + token})
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
			assert.Empty(t, d.Role, "an invalid credential must not fall back to anonymous")
		})
	}
}

func TestAdmitMissingSubjectRejected(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	token := signToken(t, signingSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer " + token})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestAdmitNonBearerSchemeIsNoCredential(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	d, err := g.Admit(context.Background(), cfg, models.Signals{
		Authorization: "Basic dXNlcjpwYXNz",
	})
	require.NoError(t, err)
	assert.Equal(t, "anon", d.Role)
}

func TestAdmitBearerSchemeCaseInsensitive(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	token := signToken(t, signingSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	d, err := g.Admit(context.Background(), cfg, models.Signals{Authorization: "bearer " + token})
	require.NoError(t, err)
	assert.Equal(t, "web_user", d.Role)
}

func TestAdmitStrictTenantRefusesAnonymous(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(true)

	_, err := g.Admit(context.Background(), cfg, models.Signals{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestAdmitStrictGatewayOverridesTenant(t *testing.T) {
	g := New(WithStrict(true))
	cfg := tenantWithAuth(false)

	_, err := g.Admit(context.Background(), cfg, models.Signals{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestAdmitIssuerEnforced(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)
	cfg.Modules[0].Config["issuer"] = "https://issuer.example.com"

	good := signToken(t, signingSecret, jwt.MapClaims{
		"sub": "user-42",
		"iss": "https://issuer.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err := g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer " + good})
	require.NoError(t, err)

	bad := signToken(t, signingSecret, jwt.MapClaims{
		"sub": "user-42",
		"iss": "https://evil.example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	_, err = g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer " + bad})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestAdmitAlgorithmConfusionRejected(t *testing.T) {
	g := New()
	cfg := tenantWithAuth(false)

	// A token signed with a different algorithm family must not verify,
	// even with a valid-looking structure.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer " + signed})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestAdmitMissingAuthModule(t *testing.T) {
	g := New()
	cfg := &models.TenantConfig{
		DatabaseID: "db-1",
		AnonRole:   "anon",
		AuthRole:   "web_user",
	}

	// Without a credential the tenant still serves anonymously.
	d, err := g.Admit(context.Background(), cfg, models.Signals{})
	require.NoError(t, err)
	assert.Equal(t, "anon", d.Role)

	// With a credential the tenant cannot verify, so the request fails
	// closed as a configuration error rather than silently dropping the
	// token.
	d, err = g.Admit(context.Background(), cfg, models.Signals{Authorization: "Bearer abc"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	assert.Empty(t, d.Role)
}
