package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// LoadStatic reads the fixed tenant configuration served when the registry is
// disabled entirely. The file carries a single TenantConfig in YAML.
func LoadStatic(path string) (*models.TenantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback config: %w", err)
	}

	var cfg models.TenantConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "malformed fallback config")
	}

	if len(cfg.Schemas) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "fallback config needs at least one schema")
	}
	if cfg.AnonRole == "" {
		cfg.AnonRole = "anonymous"
	}
	if cfg.AuthRole == "" {
		cfg.AuthRole = "authenticated"
	}
	if cfg.Visibility == "" {
		cfg.Visibility = models.VisibilityPublic
	}
	return &cfg, nil
}
