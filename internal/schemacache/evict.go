package schemacache

import (
	"schemagate/internal/tenant/models"
)

// EvictDatabase removes every cache entry backed by the given database id,
// across both tiers and all resolution keys that map to it. Builds still in
// flight are marked so their artifact resolves the current waiters but is
// never cached; the eviction wins even when it races ahead of population.
// Returns the number of keys evicted.
func (c *Cache) EvictDatabase(databaseID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	n := 0
	for key := range c.byDB[databaseID] {
		c.evictLocked(key)
		n++
	}
	delete(c.byDB, databaseID)

	// Builds whose config fetch has not completed yet cannot be matched to a
	// database; mark them so a stale artifact cannot slip into the cache.
	for _, e := range c.entries {
		if e.databaseID == "" && !isDone(e) {
			e.invalidated = true
		}
	}

	c.count(n)
	return n
}

// FlushKey evicts a single resolution key from both tiers.
func (c *Cache) FlushKey(key models.ResolutionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.evictLocked(key)
	c.count(1)
}

// FlushAll drops every entry in both tiers. Called on graceful shutdown and
// exposed as a manual operator action.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++

	n := len(c.entries)
	for key, e := range c.entries {
		if !isDone(e) {
			e.invalidated = true
			continue
		}
		delete(c.entries, key)
	}
	c.configs.Flush()
	c.byDB = make(map[string]map[models.ResolutionKey]struct{})

	c.count(n)
	c.gauge()
}

// evictLocked removes a key pairwise from both tiers. Caller holds mu.
// In-flight entries stay in the map so their waiters resolve, but are marked
// invalidated; finish removes them.
func (c *Cache) evictLocked(key models.ResolutionKey) {
	c.configs.Delete(key.String())
	if e, ok := c.entries[key]; ok {
		if isDone(e) {
			delete(c.entries, key)
		} else {
			e.invalidated = true
		}
	}
	c.gauge()
}

// Len reports the number of settled tier-2 entries, for observability.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if isDone(e) {
			n++
		}
	}
	return n
}

func (c *Cache) count(n int) {
	if c.metrics != nil && n > 0 {
		c.metrics.EntriesEvicted.Add(float64(n))
	}
}

func isDone(e *entry) bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
