package rules

import (
	"sync"
	"time"
)

// InMemoryVersionsCache is a simple in-memory implementation of
// VersionsCache. Thread-safe for concurrent access.
type InMemoryVersionsCache struct {
	versions []*RuleVersion
	cachedAt time.Time
	config   CacheConfig
	isValid  bool
	mu       sync.RWMutex
}

// NewInMemoryVersionsCache creates a new in-memory versions cache.
func NewInMemoryVersionsCache(config CacheConfig) *InMemoryVersionsCache {
	return &InMemoryVersionsCache{config: config}
}

// Get retrieves cached versions. Returns nil if the cache is invalid or
// expired.
func (c *InMemoryVersionsCache) Get() []*RuleVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return nil
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}

	// Return a copy to prevent external modifications
	out := make([]*RuleVersion, len(c.versions))
	copy(out, c.versions)
	return out
}

// Set stores versions in the cache.
func (c *InMemoryVersionsCache) Set(versions []*RuleVersion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.versions = make([]*RuleVersion, len(versions))
	copy(c.versions, versions)
	c.cachedAt = time.Now()
	c.isValid = true
}

// Invalidate clears the cache.
func (c *InMemoryVersionsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isValid = false
	c.versions = nil
}

// IsValid returns true if the cache contains valid data.
func (c *InMemoryVersionsCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isValid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}
