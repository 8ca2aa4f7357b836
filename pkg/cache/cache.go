package cache

import "time"

// Cache is a TTL cache keyed by string.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns (value, true) if found, (nil, false) if not found.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with a TTL.
	// Writes are applied asynchronously, call Wait to make them visible.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value from the cache.
	Delete(key string)

	// Wait blocks until all pending writes have been applied.
	Wait()

	// Close closes the cache and releases resources.
	Close()
}
