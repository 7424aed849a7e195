package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalsFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "http://api.example.com:8443/graphql", nil)
	req.Header.Set("X-Api-Name", "ops-api")
	req.Header.Set("X-Database-Id", "db-1")
	req.Header.Set("X-Schemata", " public , billing ,, ")
	req.Header.Set("X-Meta-Schema", "TRUE")
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	sig := SignalsFromRequest(req)

	assert.Equal(t, "api.example.com", sig.Host, "port must be stripped")
	assert.Equal(t, "ops-api", sig.APIName)
	assert.Equal(t, "db-1", sig.DatabaseID)
	assert.Equal(t, []string{"public", "billing"}, sig.Schemas)
	assert.True(t, sig.MetaSchema)
	assert.Equal(t, "Bearer tok", sig.Authorization)
	assert.Equal(t, "https://app.example.com", sig.Origin)
	assert.Equal(t, "203.0.113.9", sig.RemoteIP, "first forwarded hop wins")
}

func TestSignalsMetaSchemaTruthiness(t *testing.T) {
	for value, want := range map[string]bool{
		"1":     true,
		"true":  true,
		"YES":   true,
		"0":     false,
		"false": false,
		"":      false,
		"no":    false,
	} {
		req := httptest.NewRequest("POST", "http://x.example.com/graphql", nil)
		req.Header.Set("X-Meta-Schema", value)
		assert.Equal(t, want, SignalsFromRequest(req).MetaSchema, value)
	}
}

func TestSignalsPreflightInputsOnlyOnOptions(t *testing.T) {
	req := httptest.NewRequest("POST", "http://x.example.com/graphql", nil)
	req.Header.Set("Access-Control-Request-Method", "POST")
	assert.Empty(t, SignalsFromRequest(req).RequestedMethod)

	req = httptest.NewRequest("OPTIONS", "http://x.example.com/graphql", nil)
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Schemata")
	sig := SignalsFromRequest(req)
	assert.Equal(t, "POST", sig.RequestedMethod)
	assert.Equal(t, []string{"Content-Type", "X-Schemata"}, sig.RequestedHeaders)
}

func TestSignalsRemoteAddrFallback(t *testing.T) {
	req := httptest.NewRequest("POST", "http://x.example.com/graphql", nil)
	req.RemoteAddr = "192.0.2.7:59000"
	assert.Equal(t, "192.0.2.7", SignalsFromRequest(req).RemoteIP)
}
