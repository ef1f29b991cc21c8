// Package gorawrcache is a multi-level caching subsystem: a bounded
// in-process LRU tier (L1) layered in front of a shared backend tier (L2),
// used to cut latency and load for expensive computations, API calls, and
// database queries.
//
// Reads check L1 first, then the backend; backend hits are promoted into
// L1. Writes go through to both tiers. Backend failures never reach the
// caller: they trip a circuit breaker, are counted in metrics, and degrade
// operations to L1-only until the backend recovers. With several process
// instances sharing one backend, cross-instance consistency is eventual —
// brief staleness between instances is expected.
package gorawrcache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Keksclan/goRawrCache/breaker"
	"github.com/Keksclan/goRawrCache/key"
	"github.com/Keksclan/goRawrCache/l1"
	"github.com/Keksclan/goRawrCache/metrics"
	"github.com/Keksclan/goRawrCache/retry"
	"github.com/Keksclan/goRawrCache/store"
	"github.com/Keksclan/goRawrCache/tracing"
)

// probeTimeout bounds the initial backend reachability probe.
const probeTimeout = 5 * time.Second

// Manager orchestrates the cache tiers. Construct one explicitly with
// [New] and pass it through call chains; there is no package-level
// singleton.
type Manager struct {
	cfg     Config
	keys    *key.Builder
	l1      *l1.Cache
	st      store.Store
	metrics *metrics.Metrics
	brk     *breaker.Breaker
	log     *zap.Logger
	trace   *tracing.Config
}

// New creates a Manager over the given backend store. The backend is
// probed once (with backoff); an unreachable backend does not fail
// construction — the manager starts in degraded L1-only mode and recovers
// through the circuit breaker once the backend answers again.
func New(cfg Config, st store.Store, opts ...Option) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := settings{
		logger:     zap.NewNop(),
		breakerCfg: defaultBreakerConfig(),
	}
	for _, o := range opts {
		o(&s)
	}

	cache, err := l1.New(cfg.L1MaxItems, cfg.L1MaxMemoryBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.Version == "" {
		cfg.Version = key.DefaultVersion
	}
	if cfg.PromoteTTL <= 0 {
		cfg.PromoteTTL = DefaultConfig().PromoteTTL
	}

	m := &Manager{
		cfg:     cfg,
		keys:    key.New(cfg.Version),
		l1:      cache,
		st:      st,
		metrics: metrics.New(),
		brk:     breaker.New(s.breakerCfg),
		log:     s.logger.With(zap.String("component", "cache")),
		trace:   s.tracing,
	}

	if s.registerer != nil {
		if err := s.registerer.Register(m.metrics); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	if cfg.Enabled && st != nil {
		m.probe(context.Background())
	}
	return m, nil
}

// probe checks backend reachability with a short retry budget. Failure
// trips the breaker so the manager starts degraded.
func (m *Manager) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := retry.Do(ctx, retry.Config{
		MaxAttempts: defaultProbeRetry.maxAttempts,
		BaseDelay:   defaultProbeRetry.baseDelay,
		MaxDelay:    defaultProbeRetry.maxDelay,
		RetryIf:     func(error) bool { return true },
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.st.Ping(ctx)
	})
	if err != nil {
		m.log.Warn("backend unreachable, starting in L1-only mode",
			zap.Error(fmt.Errorf("%w: %v", ErrBackendUnavailable, err)))
		m.metrics.RecordError()
		m.brk.Trip()
		return
	}
	m.log.Info("backend reachable")
}

// Get returns the value stored under k. L1 is consulted first; on an L1
// miss the backend is checked (when available) and a backend hit is
// promoted into L1 before returning.
func (m *Manager) Get(ctx context.Context, k string) ([]byte, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	ctx, done := m.trace.StartOp(ctx, "cache.get", k)
	stop := m.metrics.Track()
	defer stop()

	if v, ok := m.l1.Get(k); ok {
		m.metrics.RecordHit()
		done(true, nil)
		return v, true
	}

	if v, ok := m.l2Get(ctx, k); ok {
		m.l1.Set(k, v, m.promoteTTL(ctx, k))
		m.metrics.RecordHit()
		done(true, nil)
		return v, true
	}

	m.metrics.RecordMiss()
	done(false, nil)
	return nil, false
}

// Set stores value under k in both tiers. The value is JSON-encoded;
// ErrSerialization is the only error Set returns — backend write failures
// are absorbed into degraded mode.
func (m *Manager) Set(ctx context.Context, k string, value any, ttl time.Duration) error {
	if !m.cfg.Enabled {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return m.SetBytes(ctx, k, data, ttl)
}

// SetBytes stores an already-encoded value under k in both tiers.
func (m *Manager) SetBytes(ctx context.Context, k string, data []byte, ttl time.Duration) error {
	if !m.cfg.Enabled {
		return nil
	}
	ctx, done := m.trace.StartOp(ctx, "cache.set", k)
	stop := m.metrics.Track()
	defer stop()

	m.metrics.RecordSet()
	if !m.l1.Set(k, data, ttl) {
		m.log.Debug("value exceeds L1 memory budget, storing in backend only",
			zap.String("key", k), zap.Int("bytes", len(data)))
	}
	m.l2Set(ctx, k, data, ttl)
	done(false, nil)
	return nil
}

// Delete removes k from both tiers and reports whether either tier held it.
func (m *Manager) Delete(ctx context.Context, k string) bool {
	if !m.cfg.Enabled {
		return false
	}
	ctx, done := m.trace.StartOp(ctx, "cache.delete", k)
	stop := m.metrics.Track()
	defer stop()

	m.metrics.RecordDelete()
	removed := m.l1.Delete(k)
	if n := m.l2Delete(ctx, k); n > 0 {
		removed = true
	}
	done(false, nil)
	return removed
}

// InvalidatePattern clears the whole L1 tier (it has no prefix index) and,
// when the backend supports key enumeration, deletes matching backend keys.
// The returned count covers backend deletions only.
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) int {
	if !m.cfg.Enabled {
		return 0
	}
	ctx, done := m.trace.StartOp(ctx, "cache.invalidate", pattern)
	defer done(false, nil)

	m.l1.Clear()

	lister, ok := m.st.(store.KeyLister)
	if !ok || !m.brk.Allow() {
		return 0
	}
	keys, err := lister.Keys(ctx, pattern)
	if err != nil {
		m.backendFailure("keys", pattern, err)
		return 0
	}
	m.brk.OnSuccess()
	if len(keys) == 0 {
		return 0
	}
	n, err := m.st.Delete(ctx, keys...)
	if err != nil {
		m.backendFailure("delete", pattern, err)
		return 0
	}
	return n
}

// Stats is the observability snapshot returned by [Manager.Stats].
type Stats struct {
	Hits    uint64
	Misses  uint64
	Sets    uint64
	Deletes uint64
	Errors  uint64

	HitRate         float64
	AvgResponseTime time.Duration

	L1Items int
	L1Bytes int64

	L2Available bool
}

// Stats returns current counters, derived rates, L1 usage, and the backend
// availability flag.
func (m *Manager) Stats() Stats {
	s := m.metrics.Snapshot()
	return Stats{
		Hits:            s.Hits,
		Misses:          s.Misses,
		Sets:            s.Sets,
		Deletes:         s.Deletes,
		Errors:          s.Errors,
		HitRate:         s.HitRate,
		AvgResponseTime: s.AvgResponseTime,
		L1Items:         m.l1.Len(),
		L1Bytes:         m.l1.Bytes(),
		L2Available:     m.brk.Available(),
	}
}

// Available reports whether the L2 backend is currently treated as
// reachable.
func (m *Manager) Available() bool {
	return m.brk.Available()
}

// Keys returns the key builder bound to the configured scheme version.
func (m *Manager) Keys() *key.Builder {
	return m.keys
}

// Metrics returns the metrics aggregator for direct inspection (health,
// trend, effectiveness).
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// TTLFor returns the effective TTL for a value category.
func (m *Manager) TTLFor(cat key.Category) time.Duration {
	return m.cfg.TTLFor(cat)
}

// Enabled reports whether caching is switched on.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func (m *Manager) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// --- backend access ---------------------------------------------------------

// l2Get reads from the backend through the breaker. Failures are absorbed:
// counted, logged, and reported as a miss.
func (m *Manager) l2Get(ctx context.Context, k string) ([]byte, bool) {
	if m.st == nil || !m.brk.Allow() {
		return nil, false
	}
	v, ok, err := m.st.Get(ctx, k)
	if err != nil {
		m.backendFailure("get", k, err)
		return nil, false
	}
	m.brk.OnSuccess()
	return v, ok
}

// l2Set writes to the backend through the breaker, absorbing failures.
func (m *Manager) l2Set(ctx context.Context, k string, data []byte, ttl time.Duration) {
	if m.st == nil || !m.brk.Allow() {
		return
	}
	if err := m.st.Set(ctx, k, data, ttl); err != nil {
		m.backendFailure("set", k, err)
		return
	}
	m.brk.OnSuccess()
}

// l2Delete deletes from the backend through the breaker, absorbing
// failures. Returns the number of keys the backend removed.
func (m *Manager) l2Delete(ctx context.Context, keys ...string) int {
	if m.st == nil || !m.brk.Allow() {
		return 0
	}
	n, err := m.st.Delete(ctx, keys...)
	if err != nil {
		m.backendFailure("delete", keys[0], err)
		return 0
	}
	m.brk.OnSuccess()
	return n
}

// backendFailure is the single funnel for absorbed backend errors.
func (m *Manager) backendFailure(op, k string, err error) {
	wasAvailable := m.brk.Available()
	m.metrics.RecordError()
	m.brk.OnFailure()
	m.log.Warn("backend operation failed",
		zap.String("op", op),
		zap.String("key", k),
		zap.Error(fmt.Errorf("%w: %v", ErrBackendError, err)),
	)
	if wasAvailable && !m.brk.Available() {
		m.log.Error("backend marked unavailable, degrading to L1-only mode")
	}
}

// promoteTTL decides the L1 lifetime for an entry promoted from the
// backend: the backend's remaining TTL when it can report one, otherwise
// the configured promotion default.
func (m *Manager) promoteTTL(ctx context.Context, k string) time.Duration {
	if tr, ok := m.st.(store.TTLReporter); ok && m.brk.Allow() {
		if d, ok, err := tr.TTL(ctx, k); err == nil && ok && d > 0 {
			return d
		}
	}
	return m.cfg.PromoteTTL
}
