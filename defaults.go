package gorawrcache

import (
	"time"

	"github.com/Keksclan/goRawrCache/breaker"
	"github.com/Keksclan/goRawrCache/key"
)

// defaultTTLs are the per-category lifetimes used when Config.TTLs does not
// override a category.
var defaultTTLs = map[key.Category]time.Duration{
	key.CategoryDBQuery:     5 * time.Minute,
	key.CategoryAPIResponse: 10 * time.Minute,
	key.CategoryComputation: 30 * time.Minute,
	key.CategoryExternalAPI: 15 * time.Minute,
	key.CategoryStartup:     time.Hour,
	key.CategoryBackground:  2 * time.Hour,
}

// DefaultConfig returns the recommended production configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		L1MaxItems:       10_000,
		L1MaxMemoryBytes: 64 << 20, // 64 MiB
		Version:          key.DefaultVersion,
		PromoteTTL:       5 * time.Minute,
	}
}

// defaultBreakerConfig gates the L2 backend: three consecutive failures
// open the circuit, probes resume after 30 seconds, one probe success
// restores availability.
func defaultBreakerConfig() breaker.Config {
	return breaker.Config{
		FailureThreshold:   3,
		OpenTimeout:        30 * time.Second,
		HalfOpenMaxSuccess: 1,
	}
}

// defaultProbeRetry is the backoff applied to the initial backend probe.
var defaultProbeRetry = struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}{
	maxAttempts: 3,
	baseDelay:   100 * time.Millisecond,
	maxDelay:    time.Second,
}
