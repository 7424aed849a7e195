package corsgate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"schemagate/internal/tenant/models"
)

func tenantWithOrigins(origins string) *models.TenantConfig {
	cfg := &models.TenantConfig{
		DatabaseID: "db-1",
		Domain:     "example.com",
		Subdomain:  "api",
		Visibility: models.VisibilityPublic,
		Schemas:    []string{"public"},
	}
	if origins != "" {
		cfg.Modules = []models.Module{{
			Kind:   models.ModuleCORS,
			Config: map[string]string{"origins": origins},
		}}
	}
	return cfg
}

func TestDecideLocalhostAlwaysAllowed(t *testing.T) {
	g := New()

	for _, origin := range []string{
		"http://localhost",
		"http://localhost:3000",
		"https://LOCALHOST:8443",
	} {
		d := g.Decide(nil, models.Signals{Origin: origin})
		assert.True(t, d.Allowed, origin)
		assert.Equal(t, origin, d.AllowOrigin)
	}

	// localhost as a substring is not localhost.
	d := g.Decide(nil, models.Signals{Origin: "https://localhost.evil.com"})
	assert.False(t, d.Allowed)
}

func TestDecideFallbackWildcard(t *testing.T) {
	g := New(WithFallbackOrigin("*"))

	d := g.Decide(nil, models.Signals{Origin: "https://anything.example.org"})
	assert.True(t, d.Allowed)
	assert.Equal(t, "*", d.AllowOrigin)
}

func TestDecideFallbackExact(t *testing.T) {
	g := New(WithFallbackOrigin("https://app.example.org"))

	d := g.Decide(nil, models.Signals{Origin: "https://app.example.org"})
	assert.True(t, d.Allowed)
	assert.Equal(t, "https://app.example.org", d.AllowOrigin)

	// A non-matching origin falls through to the tenant rung instead of
	// being rejected outright.
	cfg := tenantWithOrigins("https://partner.example.net")
	d = g.Decide(cfg, models.Signals{Origin: "https://partner.example.net"})
	assert.True(t, d.Allowed)

	d = g.Decide(cfg, models.Signals{Origin: "https://stranger.example.net"})
	assert.False(t, d.Allowed)
	assert.Empty(t, d.AllowOrigin)
}

func TestDecideTenantModuleOrigins(t *testing.T) {
	g := New()
	cfg := tenantWithOrigins("https://app.partner.com, widgets.example.net")

	// Full-URL entries require a full-origin match.
	d := g.Decide(cfg, models.Signals{Origin: "https://app.partner.com"})
	assert.True(t, d.Allowed)
	d = g.Decide(cfg, models.Signals{Origin: "http://app.partner.com"})
	assert.False(t, d.Allowed, "scheme is part of a full-URL entry")

	// Bare entries match the origin hostname under any scheme or port.
	d = g.Decide(cfg, models.Signals{Origin: "http://widgets.example.net:8080"})
	assert.True(t, d.Allowed)
}

func TestDecideRegisteredDomainAllowed(t *testing.T) {
	g := New()
	cfg := tenantWithOrigins("")

	d := g.Decide(cfg, models.Signals{Origin: "https://api.example.com"})
	assert.True(t, d.Allowed)

	// No wildcard subdomain matching: only the registered host itself.
	d = g.Decide(cfg, models.Signals{Origin: "https://other.example.com"})
	assert.False(t, d.Allowed)
}

func TestDecideNoOriginNoDecision(t *testing.T) {
	g := New(WithFallbackOrigin("*"))

	d := g.Decide(tenantWithOrigins(""), models.Signals{})
	assert.False(t, d.Allowed)
	assert.Empty(t, d.AllowOrigin)
}

func TestDecideNilTenantUsesGatewayRungsOnly(t *testing.T) {
	g := New()

	d := g.Decide(nil, models.Signals{Origin: "https://app.partner.com"})
	assert.False(t, d.Allowed)
}

func TestPreflightEchoBoundedToSafeSets(t *testing.T) {
	g := New(WithFallbackOrigin("*"))

	d := g.Decide(nil, models.Signals{
		Origin:           "https://app.partner.com",
		RequestedMethod:  "post",
		RequestedHeaders: []string{"Content-Type", "X-Schemata", "X-Dangerous-Header"},
	})

	assert.True(t, d.Allowed)
	assert.Equal(t, "POST", d.AllowMethods)
	assert.Equal(t, "content-type, x-schemata", d.AllowHeaders)
}

func TestPreflightUnsafeMethodDropped(t *testing.T) {
	g := New(WithFallbackOrigin("*"))

	d := g.Decide(nil, models.Signals{
		Origin:          "https://app.partner.com",
		RequestedMethod: "DELETE",
	})

	assert.True(t, d.Allowed)
	assert.Empty(t, d.AllowMethods)
}
