package store

import (
	"context"
	"strings"
	"sync"

	"schemagate/internal/tenant/models"
	dErrors "schemagate/pkg/domain-errors"
)

// InMemoryStore keeps tenant metadata in memory. It backs tests and the
// seeding tooling; production lookups go through PostgresStore.
type InMemoryStore struct {
	mu        sync.RWMutex
	tenants   []*models.TenantConfig
	databases map[string]*models.Database
	schemas   map[string]map[string]bool // databaseID -> schema name set
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		databases: make(map[string]*models.Database),
		schemas:   make(map[string]map[string]bool),
	}
}

// AddDatabase registers a database identity with its defaults and schemas.
func (s *InMemoryStore) AddDatabase(db models.Database, schemaNames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases[db.ID] = &db
	set := s.schemas[db.ID]
	if set == nil {
		set = make(map[string]bool)
		s.schemas[db.ID] = set
	}
	for _, name := range schemaNames {
		set[name] = true
	}
}

// AddTenant registers a tenant config snapshot.
func (s *InMemoryStore) AddTenant(cfg models.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = append(s.tenants, &cfg)
}

// ReplaceTenant swaps the registration matching the host of cfg, emulating a
// metadata edit from another process.
func (s *InMemoryStore) ReplaceTenant(cfg models.TenantConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tenants {
		if t.Host() == cfg.Host() {
			s.tenants[i] = &cfg
			return
		}
	}
	s.tenants = append(s.tenants, &cfg)
}

func (s *InMemoryStore) FindByAPIName(_ context.Context, apiName, databaseID string) (*models.TenantConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.APIName == apiName && t.DatabaseID == databaseID {
			cfg := *t
			return &cfg, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) FindByHost(_ context.Context, host string, vis models.Visibility) (*models.TenantConfig, error) {
	host = strings.ToLower(strings.TrimSpace(host))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*models.TenantConfig
	for _, t := range s.tenants {
		if t.Visibility == vis && strings.ToLower(t.Host()) == host {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		cfg := *matches[0]
		return &cfg, nil
	default:
		return nil, dErrors.New(dErrors.CodeConfiguration, "duplicate tenant registration for host "+host)
	}
}

func (s *InMemoryStore) ValidSchemas(_ context.Context, databaseID string, schemas []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := s.schemas[databaseID]
	valid := make([]string, 0, len(schemas))
	for _, name := range models.CanonicalSchemas(schemas) {
		if known[name] {
			valid = append(valid, name)
		}
	}
	return valid, nil
}

func (s *InMemoryStore) Database(_ context.Context, databaseID string) (*models.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if db, ok := s.databases[databaseID]; ok {
		cp := *db
		return &cp, nil
	}
	return nil, ErrNotFound
}
