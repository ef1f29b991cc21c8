package gorawrcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Keksclan/goRawrCache/breaker"
	"github.com/Keksclan/goRawrCache/store"
)

// testManager wires a Manager to a miniredis-backed store.
func testManager(t *testing.T, opts ...Option) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st := store.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = st.Close() })

	cfg := DefaultConfig()
	cfg.L1MaxItems = 64
	m, err := New(cfg, st, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, mr
}

// failingStore simulates an unreachable backend: every call errors.
type failingStore struct {
	calls int
}

var errDown = errors.New("connection refused")

func (f *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	f.calls++
	return nil, false, errDown
}
func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	f.calls++
	return errDown
}
func (f *failingStore) Delete(context.Context, ...string) (int, error) {
	f.calls++
	return 0, errDown
}
func (f *failingStore) Ping(context.Context) error {
	f.calls++
	return errDown
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.L1MaxItems = 0
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.L1MaxMemoryBytes = -1
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	// A version the key parser cannot recognize would silently disable
	// version expiry.
	cfg = DefaultConfig()
	cfg.Version = "beta"
	if _, err := New(cfg, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for unparseable version, got %v", err)
	}
}

func TestGetSetDelete(t *testing.T) {
	m, _ := testManager(t)
	ctx := t.Context()

	if _, ok := m.Get(ctx, "cache:k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	if err := m.Set(ctx, "cache:k", "hello", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := m.Get(ctx, "cache:k")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(v) != `"hello"` {
		t.Fatalf("got %q", v)
	}

	if !m.Delete(ctx, "cache:k") {
		t.Fatal("Delete should report removal")
	}
	if _, ok := m.Get(ctx, "cache:k"); ok {
		t.Fatal("entry survived Delete")
	}
}

func TestSet_WritesThroughToBackend(t *testing.T) {
	m, mr := testManager(t)
	ctx := t.Context()

	if err := m.Set(ctx, "cache:k", 42, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := mr.Get("cache:k")
	if err != nil {
		t.Fatalf("backend missing entry: %v", err)
	}
	if got != "42" {
		t.Fatalf("backend holds %q, want %q", got, "42")
	}
}

func TestGet_PromotesBackendHitIntoL1(t *testing.T) {
	m, mr := testManager(t)
	ctx := t.Context()

	// Present only in the backend, as if another instance wrote it.
	mr.Set("cache:shared", `"from-peer"`)

	v, ok := m.Get(ctx, "cache:shared")
	if !ok {
		t.Fatal("expected backend hit")
	}
	if string(v) != `"from-peer"` {
		t.Fatalf("got %q", v)
	}

	// Now visible via L1-only inspection.
	if _, ok := m.l1.Get("cache:shared"); !ok {
		t.Fatal("backend hit was not promoted into L1")
	}
}

func TestGet_PromotionCappedByBackendTTL(t *testing.T) {
	m, mr := testManager(t)
	ctx := t.Context()

	mr.Set("cache:ttl", `"v"`)
	mr.SetTTL("cache:ttl", 50*time.Millisecond)

	if _, ok := m.Get(ctx, "cache:ttl"); !ok {
		t.Fatal("expected backend hit")
	}
	if _, ok := m.l1.Get("cache:ttl"); !ok {
		t.Fatal("entry missing from L1 after promotion")
	}

	// The promoted entry inherits the backend's remaining lifetime. Under
	// the five-minute promotion default it would still be present here.
	time.Sleep(80 * time.Millisecond)
	if _, ok := m.l1.Get("cache:ttl"); ok {
		t.Fatal("promoted entry outlived the backend TTL")
	}
}

func TestDegradedMode_OperationsStillSucceed(t *testing.T) {
	st := &failingStore{}
	cfg := DefaultConfig()
	m, err := New(cfg, st, WithBreaker(breaker.Config{
		FailureThreshold:   1,
		OpenTimeout:        time.Hour,
		HalfOpenMaxSuccess: 1,
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := t.Context()

	// The failed init probe already tripped the breaker.
	if m.Available() {
		t.Fatal("manager should start degraded with an unreachable backend")
	}
	errsBefore := m.Stats().Errors
	if errsBefore == 0 {
		t.Fatal("failed probe should be counted")
	}

	// All operations succeed via L1 only, without surfacing errors.
	if err := m.Set(ctx, "cache:k", "v", time.Minute); err != nil {
		t.Fatalf("Set in degraded mode: %v", err)
	}
	v, ok := m.Get(ctx, "cache:k")
	if !ok || string(v) != `"v"` {
		t.Fatalf("Get in degraded mode: (%q, %v)", v, ok)
	}
	if !m.Delete(ctx, "cache:k") {
		t.Fatal("Delete in degraded mode should still remove from L1")
	}

	// The open breaker short-circuits backend calls entirely.
	callsBefore := st.calls
	m.Set(ctx, "cache:k2", "v", time.Minute)
	m.Get(ctx, "cache:k3")
	if st.calls != callsBefore {
		t.Fatalf("backend called %d times while breaker open", st.calls-callsBefore)
	}

	if s := m.Stats(); s.L2Available {
		t.Fatal("stats must report backend unavailable")
	}
}

func TestRecovery_SuccessfulCallFlipsAvailabilityBack(t *testing.T) {
	m, mr := testManager(t, WithBreaker(breaker.Config{
		FailureThreshold:   1,
		OpenTimeout:        10 * time.Millisecond,
		HalfOpenMaxSuccess: 1,
	}))
	ctx := t.Context()

	// Knock the backend over and trip the breaker.
	mr.Close()
	m.Set(ctx, "cache:k", "v", time.Minute)
	if m.Available() {
		t.Fatal("breaker should be open after backend failure")
	}

	// Bring it back and wait out the open timeout; the next call is the
	// probe that restores availability.
	if err := mr.Restart(); err != nil {
		t.Fatalf("restart miniredis: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	m.Set(ctx, "cache:k", "v", time.Minute)
	if !m.Available() {
		t.Fatal("successful backend call should restore availability")
	}
}

func TestTTLExpiryThroughManager(t *testing.T) {
	m, mr := testManager(t)
	ctx := t.Context()

	if err := m.Set(ctx, "cache:k", "v", time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Expire in both tiers: miniredis via FastForward, L1 by forcing the
	// entry out (FastForward does not move the process clock).
	mr.FastForward(2 * time.Second)
	m.l1.Delete("cache:k")

	if _, ok := m.Get(ctx, "cache:k"); ok {
		t.Fatal("expected miss after TTL elapsed in both tiers")
	}
}

func TestInvalidatePattern(t *testing.T) {
	m, mr := testManager(t)
	ctx := t.Context()

	m.Set(ctx, "cache:user:123:profile", "p", time.Minute)
	m.Set(ctx, "cache:user:123:settings", "s", time.Minute)
	m.Set(ctx, "cache:user:456:profile", "q", time.Minute)

	n := m.InvalidatePattern(ctx, "cache:user:123:*")
	if n != 2 {
		t.Fatalf("removed %d backend keys, want 2", n)
	}

	// Matching keys are gone everywhere.
	if _, ok := m.Get(ctx, "cache:user:123:profile"); ok {
		t.Fatal("matching key survived invalidation")
	}
	// The unrelated key survived in the backend (L1 was cleared wholesale).
	if !mr.Exists("cache:user:456:profile") {
		t.Fatal("unrelated backend key was removed")
	}
	if _, ok := m.Get(ctx, "cache:user:456:profile"); !ok {
		t.Fatal("unrelated key unreachable after invalidation")
	}
}

func TestDisabledCache(t *testing.T) {
	mr := miniredis.RunT(t)
	st := store.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = st.Close() })

	cfg := DefaultConfig()
	cfg.Enabled = false
	m, err := New(cfg, st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := t.Context()

	if err := m.Set(ctx, "cache:k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := m.Get(ctx, "cache:k"); ok {
		t.Fatal("disabled cache must always miss")
	}
	if mr.Exists("cache:k") {
		t.Fatal("disabled cache must not write to the backend")
	}
}

func TestSerializationErrorSurfaces(t *testing.T) {
	m, _ := testManager(t)

	err := m.Set(t.Context(), "cache:k", func() {}, time.Minute)
	if !errors.Is(err, ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v", err)
	}
}

func TestStats(t *testing.T) {
	m, _ := testManager(t)
	ctx := t.Context()

	m.Set(ctx, "cache:a", 1, time.Minute)
	m.Get(ctx, "cache:a")
	m.Get(ctx, "cache:missing")

	s := m.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Sets != 1 {
		t.Fatalf("counters: %+v", s)
	}
	if s.HitRate != 0.5 {
		t.Fatalf("hit rate %v, want 0.5", s.HitRate)
	}
	if s.L1Items != 1 {
		t.Fatalf("L1 items %d, want 1", s.L1Items)
	}
	if s.L1Bytes <= 0 {
		t.Fatal("L1 bytes should be positive")
	}
	if !s.L2Available {
		t.Fatal("backend should be available")
	}
}
