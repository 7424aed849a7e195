package resolver

import (
	"schemagate/internal/platform/config"
	"schemagate/internal/tenant/models"
)

// Strategy derives a ResolutionKey from request signals, or reports no match.
// Strategies are pure; the precedence lives in the ordering of the chain, and
// that order is a correctness invariant, not an optimization.
type Strategy func(sig models.Signals, mode config.Mode) (models.ResolutionKey, bool)

// apiNameStrategy matches the explicit api-name + database-id header pair.
// Public gateways ignore the pair entirely so a public listener can never be
// steered onto a private API; the request falls through to domain resolution.
func apiNameStrategy(sig models.Signals, mode config.Mode) (models.ResolutionKey, bool) {
	if mode != config.ModePrivate {
		return models.ResolutionKey{}, false
	}
	if sig.APIName == "" || sig.DatabaseID == "" {
		return models.ResolutionKey{}, false
	}
	return models.APINameKey(sig.APIName, sig.DatabaseID), true
}

// schemaListStrategy matches an explicit schema-list + database-id selection.
func schemaListStrategy(sig models.Signals, _ config.Mode) (models.ResolutionKey, bool) {
	if sig.DatabaseID == "" || len(models.CanonicalSchemas(sig.Schemas)) == 0 {
		return models.ResolutionKey{}, false
	}
	return models.SchemaListKey(sig.DatabaseID, sig.Schemas), true
}

// metaStrategy matches the meta-schema-only flag.
func metaStrategy(sig models.Signals, _ config.Mode) (models.ResolutionKey, bool) {
	if !sig.MetaSchema || sig.DatabaseID == "" {
		return models.ResolutionKey{}, false
	}
	return models.MetaKey(sig.DatabaseID), true
}

// domainStrategy matches the request host.
func domainStrategy(sig models.Signals, _ config.Mode) (models.ResolutionKey, bool) {
	if sig.Host == "" {
		return models.ResolutionKey{}, false
	}
	return models.DomainKey(sig.Host), true
}

// registryChain is the fixed precedence ladder for registry-backed gateways,
// highest first, first match wins.
var registryChain = []Strategy{
	apiNameStrategy,
	schemaListStrategy,
	metaStrategy,
	domainStrategy,
}
