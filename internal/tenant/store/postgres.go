// Package store implements the tenant metadata registry lookups needed for
// routing. The PostgreSQL store is the production registry; the in-memory
// store backs tests and seeding.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// ErrNotFound is returned when no tenant metadata matches a lookup.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "tenant not found")

// PostgresStore reads tenant metadata from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `database_id, COALESCE(api_name, ''), COALESCE(domain, ''), subdomain,
	visibility, COALESCE(anon_role, ''), COALESCE(auth_role, ''), strict_auth,
	schemas, modules, updated_at`

// FindByAPIName retrieves the tenant registered under an explicit api name
// for the given database identity.
func (s *PostgresStore) FindByAPIName(ctx context.Context, apiName, databaseID string) (*models.TenantConfig, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE api_name = $1 AND database_id = $2
	`
	cfg, err := scanTenant(s.db.QueryRowContext(ctx, query, apiName, databaseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(err, "find tenant by api name")
	}
	return cfg, nil
}

// FindByHost retrieves the tenant whose registered domain or
// subdomain.domain pair matches the request host, filtered by visibility.
// More than one match is a configuration error, never a silent first-match.
func (s *PostgresStore) FindByHost(ctx context.Context, host string, vis models.Visibility) (*models.TenantConfig, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE visibility = $2
		  AND (lower(domain) = $1
		       OR (subdomain <> '' AND lower(subdomain || '.' || domain) = $1))
	`
	rows, err := s.db.QueryContext(ctx, query, host, string(vis))
	if err != nil {
		return nil, classify(err, "find tenant by host")
	}
	defer rows.Close() //nolint:errcheck

	var configs []*models.TenantConfig
	for rows.Next() {
		cfg, err := scanTenant(rows)
		if err != nil {
			return nil, classify(err, "scan tenant by host")
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "find tenant by host")
	}

	switch len(configs) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return configs[0], nil
	default:
		return nil, dErrors.New(dErrors.CodeConfiguration, "duplicate tenant registration for host "+host)
	}
}

// ValidSchemas returns the subset of the requested schema names that are
// registered for the database, preserving request order.
func (s *PostgresStore) ValidSchemas(ctx context.Context, databaseID string, schemas []string) ([]string, error) {
	schemas = models.CanonicalSchemas(schemas)
	if len(schemas) == 0 {
		return nil, nil
	}

	query := `
		SELECT schema_name
		FROM database_schemas
		WHERE database_id = $1 AND schema_name = ANY(string_to_array($2, ','))
	`
	rows, err := s.db.QueryContext(ctx, query, databaseID, strings.Join(schemas, ","))
	if err != nil {
		return nil, classify(err, "validate schema list")
	}
	defer rows.Close() //nolint:errcheck

	known := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify(err, "scan schema name")
		}
		known[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "validate schema list")
	}

	valid := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if known[s] {
			valid = append(valid, s)
		}
	}
	return valid, nil
}

// Database retrieves per-database defaults, or ErrNotFound when the database
// identity is not registered.
func (s *PostgresStore) Database(ctx context.Context, databaseID string) (*models.Database, error) {
	query := `
		SELECT database_id, anon_role, auth_role, strict_auth
		FROM databases
		WHERE database_id = $1
	`
	var db models.Database
	err := s.db.QueryRowContext(ctx, query, databaseID).Scan(&db.ID, &db.AnonRole, &db.AuthRole, &db.StrictAuth)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classify(err, "find database")
	}
	return &db, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanTenant.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*models.TenantConfig, error) {
	var (
		cfg      models.TenantConfig
		vis      string
		schemas  []byte
		modules  []byte
	)
	err := row.Scan(
		&cfg.DatabaseID,
		&cfg.APIName,
		&cfg.Domain,
		&cfg.Subdomain,
		&vis,
		&cfg.AnonRole,
		&cfg.AuthRole,
		&cfg.StrictAuth,
		&schemas,
		&modules,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.Visibility = models.Visibility(vis)
	if err := json.Unmarshal(schemas, &cfg.Schemas); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "malformed schema list for tenant")
	}
	if len(modules) > 0 {
		if err := json.Unmarshal(modules, &cfg.Modules); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "malformed module data for tenant")
		}
	}
	return &cfg, nil
}

// classify maps driver failures onto the domain taxonomy. A *pgconn.PgError
// means the server was reachable and rejected the statement; anything else
// (dial failure, timeout, canceled context) is a transport problem and maps
// to unavailable so callers can answer 503 rather than 404.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return dErrors.Wrap(err, dErrors.CodeInternal, op+": "+pgErr.Code)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, op)
}
