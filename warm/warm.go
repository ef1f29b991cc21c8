// Package warm pre-populates the cache: one-shot startup warming before a
// process serves traffic, explicit batch warming, and scheduled background
// refresh. Producer calls are paced by a token bucket so warming never
// hammers the upstreams it is meant to protect.
package warm

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	gorawrcache "github.com/Keksclan/goRawrCache"
	"github.com/Keksclan/goRawrCache/key"
)

// Spec names one key to warm: the key, the value producer, and an optional
// TTL override. A zero TTL falls back to the category default passed to
// the warming call.
type Spec struct {
	Key      string
	TTL      time.Duration
	Producer func(context.Context) (any, error)
}

// Warmer populates a Manager's cache. A Warmer is single-flight: when a
// scheduled run is still in progress at the next tick, that tick is
// skipped rather than queued.
type Warmer struct {
	m       *gorawrcache.Manager
	log     *zap.Logger
	limiter *rate.Limiter

	running atomic.Bool
}

// Option configures a Warmer.
type Option func(*Warmer)

// WithLogger sets the logger used to report warming outcomes.
func WithLogger(l *zap.Logger) Option {
	return func(w *Warmer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithRateLimit paces producer invocations to at most rps per second with
// the given burst. The default is 50 rps with a burst of 10.
func WithRateLimit(rps float64, burst int) Option {
	return func(w *Warmer) {
		w.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a Warmer bound to the given Manager.
func New(m *gorawrcache.Manager, opts ...Option) *Warmer {
	w := &Warmer{
		m:       m,
		log:     zap.NewNop(),
		limiter: rate.NewLimiter(50, 10),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// WarmKeys runs each spec's producer and stores the result under its key.
// One producer's failure never aborts the batch. Returns the number of
// keys successfully warmed.
func (w *Warmer) WarmKeys(ctx context.Context, specs []Spec) int {
	return w.warm(ctx, specs, w.m.TTLFor(key.CategoryBackground))
}

// Startup warms the given keys once, intended to run before the process
// starts serving traffic. Specs without a TTL use the startup category
// default.
func (w *Warmer) Startup(ctx context.Context, specs []Spec) int {
	n := w.warm(ctx, specs, w.m.TTLFor(key.CategoryStartup))
	w.log.Info("startup warming complete",
		zap.Int("warmed", n),
		zap.Int("requested", len(specs)),
	)
	return n
}

// Schedule re-warms the given keys on a fixed interval until ctx is done.
// It blocks; run it in its own goroutine. Ticks that arrive while a
// previous run is still in progress are skipped.
func (w *Warmer) Schedule(ctx context.Context, specs []Spec, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.running.CompareAndSwap(false, true) {
				w.log.Debug("previous warming run still in progress, skipping tick")
				continue
			}
			n := w.warm(ctx, specs, w.m.TTLFor(key.CategoryBackground))
			w.running.Store(false)
			w.log.Debug("background warming run complete", zap.Int("warmed", n))
			// A tick that queued while the run was in progress would fire
			// a back-to-back run. Drop it; the next fresh tick reschedules.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// warm runs the specs sequentially behind the rate limiter. The L1 lock is
// only ever held inside individual Set calls, never across producer waits.
func (w *Warmer) warm(ctx context.Context, specs []Spec, defaultTTL time.Duration) int {
	warmed := 0
	for _, s := range specs {
		if s.Key == "" || s.Producer == nil {
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return warmed
		}
		v, err := s.Producer(ctx)
		if err != nil {
			w.log.Warn("warming producer failed",
				zap.String("key", s.Key),
				zap.Error(err),
			)
			continue
		}
		ttl := s.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		if err := w.m.Set(ctx, s.Key, v, ttl); err != nil {
			w.log.Warn("warming store failed",
				zap.String("key", s.Key),
				zap.Error(err),
			)
			continue
		}
		warmed++
	}
	return warmed
}
