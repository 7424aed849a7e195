// Package migrations embeds the registry schema for use by tests and
// operator tooling.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
