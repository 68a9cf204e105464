package pkgmgr

import "time"

// DefaultCacheTTL bounds how long a satisfied/missing verdict is trusted
// before the package manager is consulted again.
const DefaultCacheTTL = 300 * time.Second

type cacheEntry struct {
	satisfied bool
	checkedAt time.Time
}

// Cache memoizes "is dependency X satisfied" verdicts. Entries share one
// expiry clock: a hit requires both the key to be present and the shared
// clock to be within the TTL. Invalidating any single key zeroes the shared
// clock, which expires every other entry as well. That coupling is inherited
// behavior and deliberately preserved; see DESIGN.md.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
	stamped time.Time
}

// NewCache returns a cache with the default TTL.
func NewCache() *Cache {
	return &Cache{
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		entries: map[string]cacheEntry{},
	}
}

// IsSatisfied returns the cached verdict for key and whether the cache can
// answer at all. Stale and absent entries both report ok=false.
func (c *Cache) IsSatisfied(key string) (satisfied, ok bool) {
	if c.stamped.IsZero() || c.now().Sub(c.stamped) > c.ttl {
		return false, false
	}
	entry, present := c.entries[key]
	if !present {
		return false, false
	}
	return entry.satisfied, true
}

// Record stores a verdict and re-stamps the shared clock.
func (c *Cache) Record(key string, satisfied bool) {
	c.entries[key] = cacheEntry{satisfied: satisfied, checkedAt: c.now()}
	c.stamped = c.now()
}

// Invalidate removes one key and zeroes the shared clock, forcing every
// other key to be re-derived too.
func (c *Cache) Invalidate(key string) {
	delete(c.entries, key)
	c.stamped = time.Time{}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.entries = map[string]cacheEntry{}
	c.stamped = time.Time{}
}
