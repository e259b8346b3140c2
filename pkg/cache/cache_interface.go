package cache

import (
	"context"
	"time"
)

// Cache is the contract for the cache layer (Redis in production,
// a map in tests).
type Cache interface {
	// Get unmarshals the cached value into dest.
	// found=false on a miss, dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value with the given TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error

	Ping(ctx context.Context) error
}
