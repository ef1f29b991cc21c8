package gorawrcache

import (
	"fmt"
	"time"

	"github.com/Keksclan/goRawrCache/key"
)

// Config holds the cache subsystem configuration.
type Config struct {
	// Enabled turns the whole subsystem on. When false every operation
	// short-circuits: gets miss, sets are dropped, and the get-or-compute
	// helpers call their producer directly.
	Enabled bool

	// L1MaxItems bounds the number of entries in the in-process tier.
	L1MaxItems int

	// L1MaxMemoryBytes bounds the estimated memory of the in-process tier.
	L1MaxMemoryBytes int64

	// TTLs maps value categories to their default lifetime. Categories
	// missing from the map fall back to the package defaults.
	TTLs map[key.Category]time.Duration

	// Version is the key-scheme version stamped onto versioned keys.
	// Bumping it on deploy makes old-format entries version-expired.
	// Must satisfy key.ValidVersion when set.
	Version string

	// PromoteTTL is the L1 lifetime given to entries promoted from L2
	// when the backend cannot report the remaining TTL.
	PromoteTTL time.Duration
}

// validate checks the limits. TTL maps may be partial; limits may not.
func (c *Config) validate() error {
	if c.L1MaxItems <= 0 {
		return fmt.Errorf("%w: L1MaxItems must be positive, got %d", ErrInvalidConfig, c.L1MaxItems)
	}
	if c.L1MaxMemoryBytes <= 0 {
		return fmt.Errorf("%w: L1MaxMemoryBytes must be positive, got %d", ErrInvalidConfig, c.L1MaxMemoryBytes)
	}
	if c.Version != "" && !key.ValidVersion(c.Version) {
		return fmt.Errorf("%w: version %q must start with a digit and use only digits, letters, '.', '-', '_'", ErrInvalidConfig, c.Version)
	}
	for cat, ttl := range c.TTLs {
		if ttl < 0 {
			return fmt.Errorf("%w: negative TTL %v for category %q", ErrInvalidConfig, ttl, cat)
		}
	}
	return nil
}

// TTLFor returns the configured TTL for a category, falling back to the
// package default for categories the config does not name.
func (c *Config) TTLFor(cat key.Category) time.Duration {
	if ttl, ok := c.TTLs[cat]; ok {
		return ttl
	}
	if ttl, ok := defaultTTLs[cat]; ok {
		return ttl
	}
	return defaultTTLs[key.CategoryComputation]
}
