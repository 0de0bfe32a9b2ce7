package rules

import "time"

// VersionsCache provides an abstraction for caching the latest-version
// rule set used by the engine. This allows swapping between in-memory,
// Redis, or other caching implementations.
type VersionsCache interface {
	// Get retrieves cached versions, returns nil if cache miss or expired
	Get() []*RuleVersion

	// Set stores versions in cache
	Set(versions []*RuleVersion)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()

	// IsValid returns true if cache has valid data
	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration
}

// DefaultCacheConfig returns sensible defaults for caching latest
// versions: no TTL, invalidate only when a new version is created.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
