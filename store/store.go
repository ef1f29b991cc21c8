// Package store defines the contract for the shared L2 cache backend and
// provides a Redis implementation. The backend is consumed abstractly: the
// manager never assumes more than the Store interface, and discovers
// optional capabilities (key enumeration, TTL inspection) by type
// assertion.
package store

import (
	"context"
	"time"
)

// Store is the minimal L2 backend contract. Implementations surface their
// errors; translating failures into degraded-mode behavior is the
// manager's job, not the store's.
type Store interface {
	// Get retrieves the value for key. The boolean reports presence.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A zero ttl means no automatic expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys and returns how many were present.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// KeyLister is an optional capability: enumerating keys by glob pattern.
// Backends without it degrade pattern invalidation to an L1-only clear.
type KeyLister interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// TTLReporter is an optional capability: reporting the remaining TTL of a
// key. The boolean is false when the key has no expiry or does not exist.
type TTLReporter interface {
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}
