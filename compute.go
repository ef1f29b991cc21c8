package gorawrcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Keksclan/goRawrCache/key"
)

// Producer computes a value of type T when the cache cannot supply it.
// Producer failures are the one error class the cache propagates: it
// cannot invent a value.
type Producer[T any] func(context.Context) (T, error)

// GetOrCompute returns the cached value under cacheKey, or invokes
// producer once, stores the result, and returns it. Concurrent callers
// racing on the same missing key each run the producer — stampede
// deduplication is deliberately not part of this baseline.
func GetOrCompute[T any](ctx context.Context, m *Manager, cacheKey string, ttl time.Duration, producer Producer[T]) (T, error) {
	if !m.cfg.Enabled {
		return produce(ctx, cacheKey, producer)
	}
	if raw, ok := m.Get(ctx, cacheKey); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		// Undecodable entries (e.g. written by an older deploy with a
		// different shape) are treated as a miss and overwritten.
		m.log.Warn("cached value undecodable, recomputing", zap.String("key", cacheKey))
	}
	return produceAndStore(ctx, m, cacheKey, ttl, producer)
}

// DBQuery caches the result of a database query keyed by the query text
// and its canonicalized parameters.
func DBQuery[T any](ctx context.Context, m *Manager, query string, params map[string]any, producer Producer[T]) (T, error) {
	var zero T
	k, err := m.keys.ForDBQuery(query, params)
	if err != nil {
		return zero, err
	}
	return GetOrCompute(ctx, m, k, m.cfg.TTLFor(key.CategoryDBQuery), producer)
}

// APIResponse caches an internally computed API response keyed by endpoint
// and canonicalized parameters.
func APIResponse[T any](ctx context.Context, m *Manager, endpoint string, params map[string]any, producer Producer[T]) (T, error) {
	var zero T
	k, err := m.keys.ForAPI(endpoint, params)
	if err != nil {
		return zero, err
	}
	return GetOrCompute(ctx, m, k, m.cfg.TTLFor(key.CategoryAPIResponse), producer)
}

// Computation caches the result of a named expensive computation.
func Computation[T any](ctx context.Context, m *Manager, name string, params map[string]any, producer Producer[T]) (T, error) {
	var zero T
	k, err := m.keys.ForComputation(name, params)
	if err != nil {
		return zero, err
	}
	return GetOrCompute(ctx, m, k, m.cfg.TTLFor(key.CategoryComputation), producer)
}

// ExternalAPI caches the result of a third-party API call. During the
// hash-scheme migration it dual-reads: a miss on the current strong-hash
// key additionally probes the backend under the legacy weak-hash key
// derived from the same canonical parameters, and a legacy hit is promoted
// under the new key without recomputing. The legacy entry is left to
// expire naturally.
//
// TODO: remove the legacy probe once the external_api migration window
// closes (all legacy entries have TTLs of at most 15 minutes).
func ExternalAPI[T any](ctx context.Context, m *Manager, service, endpoint string, params map[string]any, producer Producer[T]) (T, error) {
	var zero T
	k, err := m.keys.ForExternalAPI(service, endpoint, params)
	if err != nil {
		return zero, err
	}
	if !m.cfg.Enabled {
		return produce(ctx, k, producer)
	}
	ttl := m.cfg.TTLFor(key.CategoryExternalAPI)

	if raw, ok := m.Get(ctx, k); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		m.log.Warn("cached value undecodable, recomputing", zap.String("key", k))
	}

	if legacy, lerr := m.keys.LegacyForExternalAPI(service, endpoint, params); lerr == nil {
		if raw, ok := m.l2Get(ctx, legacy); ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				if serr := m.SetBytes(ctx, k, raw, ttl); serr != nil {
					m.log.Warn("promoting legacy entry failed", zap.String("key", k), zap.Error(serr))
				}
				return v, nil
			}
		}
	}

	return produceAndStore(ctx, m, k, ttl, producer)
}

// produce runs the producer without touching the cache.
func produce[T any](ctx context.Context, cacheKey string, producer Producer[T]) (T, error) {
	v, err := producer(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("producer %q: %w", cacheKey, err)
	}
	return v, nil
}

// produceAndStore runs the producer and caches a successful result. A
// serialization failure does not fail the call — the value exists, it just
// stays uncached.
func produceAndStore[T any](ctx context.Context, m *Manager, cacheKey string, ttl time.Duration, producer Producer[T]) (T, error) {
	v, err := produce(ctx, cacheKey, producer)
	if err != nil {
		return v, err
	}
	if err := m.Set(ctx, cacheKey, v, ttl); err != nil {
		m.log.Warn("caching computed value failed", zap.String("key", cacheKey), zap.Error(err))
	}
	return v, nil
}
