package models

import "strings"

// KeyKind names the identification mechanism that produced a ResolutionKey.
type KeyKind string

const (
	KeyAPIName    KeyKind = "api-name"
	KeySchemaList KeyKind = "schema-list"
	KeyMeta       KeyKind = "meta"
	KeyDomain     KeyKind = "domain"
	KeyStatic     KeyKind = "static"
)

// ResolutionKey identifies a tenant + schema-selection combination. Two
// requests that should share a compiled schema produce identical keys; the
// struct is comparable so it can key cache maps directly.
type ResolutionKey struct {
	Kind       KeyKind
	DatabaseID string
	APIName    string
	// Schemas is the canonical comma-joined schema list, order-preserving:
	// schema order affects the compiled artifact.
	Schemas string
	// Domain holds the full request host for domain-derived keys.
	Domain string
}

// String renders a stable representation suitable for logs and tier-1 keys.
func (k ResolutionKey) String() string {
	parts := []string{string(k.Kind)}
	if k.DatabaseID != "" {
		parts = append(parts, k.DatabaseID)
	}
	switch k.Kind {
	case KeyAPIName:
		parts = append(parts, k.APIName)
	case KeySchemaList:
		parts = append(parts, k.Schemas)
	case KeyDomain:
		parts = append(parts, k.Domain)
	}
	return strings.Join(parts, "/")
}

// APINameKey builds the key for explicit api-name + database-id resolution.
func APINameKey(apiName, databaseID string) ResolutionKey {
	return ResolutionKey{Kind: KeyAPIName, APIName: apiName, DatabaseID: databaseID}
}

// SchemaListKey builds the key for an explicit schema-list selection. The
// list is canonicalized (trimmed, empties dropped) but order is preserved.
func SchemaListKey(databaseID string, schemas []string) ResolutionKey {
	return ResolutionKey{
		Kind:       KeySchemaList,
		DatabaseID: databaseID,
		Schemas:    strings.Join(CanonicalSchemas(schemas), ","),
	}
}

// MetaKey builds the key for meta-schema-only resolution.
func MetaKey(databaseID string) ResolutionKey {
	return ResolutionKey{Kind: KeyMeta, DatabaseID: databaseID}
}

// DomainKey builds the key for host-derived resolution.
func DomainKey(host string) ResolutionKey {
	return ResolutionKey{Kind: KeyDomain, Domain: strings.ToLower(host)}
}

// StaticKey is the single key used when the registry is disabled.
func StaticKey() ResolutionKey {
	return ResolutionKey{Kind: KeyStatic}
}

// CanonicalSchemas trims entries and drops empties, preserving order.
func CanonicalSchemas(schemas []string) []string {
	out := make([]string, 0, len(schemas))
	for _, s := range schemas {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
