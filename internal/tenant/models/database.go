package models

// Database holds per-database defaults used when a request selects schemas
// explicitly (schema-list or meta-schema resolution) and no tenant row
// contributes roles.
type Database struct {
	ID         string `yaml:"id"`
	AnonRole   string `yaml:"anonRole"`
	AuthRole   string `yaml:"authRole"`
	StrictAuth bool   `yaml:"strictAuth"`
}
