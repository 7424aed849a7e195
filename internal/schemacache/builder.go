package schemacache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"schemagate/internal/tenant/models"
)

// SnapshotBuilder is the integration point for the execution engine. It
// produces a CompiledSchema that snapshots the tenant config and a
// fingerprint over it, with no Engine attached. Deployments replace it with
// a Builder that compiles a real executable schema.
type SnapshotBuilder struct{}

func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{}
}

func (b *SnapshotBuilder) Build(_ context.Context, cfg models.TenantConfig) (*CompiledSchema, error) {
	return &CompiledSchema{
		Config:      cfg,
		Fingerprint: Fingerprint(cfg),
		BuiltAt:     time.Now(),
	}, nil
}

// Fingerprint derives a stable content hash of a TenantConfig snapshot.
// Identical tenant metadata yields identical fingerprints, so an idempotent
// rebuild after a flush is observable as an unchanged fingerprint.
func Fingerprint(cfg models.TenantConfig) string {
	cfg.UpdatedAt = time.Time{}
	raw, _ := json.Marshal(cfg)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
