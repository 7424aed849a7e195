// Package models defines the tenant metadata consumed by the routing layer:
// which schemas a tenant exposes, which database backs it, which roles and
// modules apply. A TenantConfig is immutable once fetched; a changed tenant
// produces a new value and the old cache entry is evicted, never edited.
package models

import (
	"time"
)

// Visibility gates which gateway mode may serve a tenant.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ModuleKind identifies a per-tenant module.
type ModuleKind string

const (
	// ModuleCORS carries the tenant CORS allow-list under the "origins"
	// config key (comma-separated).
	ModuleCORS ModuleKind = "cors"

	// ModuleAuth references the tenant authenticate capability. The default
	// JWT capability reads "secret" and optional "issuer".
	ModuleAuth ModuleKind = "auth"

	// ModulePubkeyChallenge carries pubkey-challenge configuration opaquely
	// for the execution layer.
	ModulePubkeyChallenge ModuleKind = "pubkey-challenge"
)

// Module is one enabled per-tenant module with its raw configuration.
type Module struct {
	Kind   ModuleKind        `json:"kind" yaml:"kind"`
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// TenantConfig is the immutable routing snapshot for one tenant: one logical
// API surface bound to one backing database identity.
type TenantConfig struct {
	DatabaseID string     `json:"databaseId" yaml:"databaseId"`
	APIName    string     `json:"apiName,omitempty" yaml:"apiName,omitempty"`
	Domain     string     `json:"domain,omitempty" yaml:"domain,omitempty"`
	Subdomain  string     `json:"subdomain,omitempty" yaml:"subdomain,omitempty"`
	Visibility Visibility `json:"visibility" yaml:"visibility"`
	Schemas    []string   `json:"schemas" yaml:"schemas"`
	AnonRole   string     `json:"anonRole" yaml:"anonRole"`
	AuthRole   string     `json:"authRole" yaml:"authRole"`
	StrictAuth bool       `json:"strictAuth,omitempty" yaml:"strictAuth,omitempty"`
	Modules    []Module   `json:"modules,omitempty" yaml:"modules,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Module returns the first enabled module of the given kind.
func (c TenantConfig) Module(kind ModuleKind) (Module, bool) {
	for _, m := range c.Modules {
		if m.Kind == kind {
			return m, true
		}
	}
	return Module{}, false
}

// Host returns the full registered host for domain-based tenants.
func (c TenantConfig) Host() string {
	if c.Domain == "" {
		return ""
	}
	if c.Subdomain == "" {
		return c.Domain
	}
	return c.Subdomain + "." + c.Domain
}
