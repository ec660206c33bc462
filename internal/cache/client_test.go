package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore wraps a MemoryStore and fails every call while broken is set.
type flakyStore struct {
	inner   *MemoryStore
	broken  atomic.Bool
	keysErr atomic.Bool
	calls   atomic.Int64
}

var errBackendDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func newFlakyStore(t *testing.T) *flakyStore {
	t.Helper()
	inner, err := NewMemoryStore(DefaultMemoryConfig())
	require.NoError(t, err)
	return &flakyStore{inner: inner}
}

func (s *flakyStore) check() error {
	s.calls.Add(1)
	if s.broken.Load() {
		return errBackendDown
	}
	return nil
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.check(); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, value, ttl)
}

func (s *flakyStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.inner.Delete(ctx, keys...)
}

func (s *flakyStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.keysErr.Load() {
		return nil, errors.New("ERR unknown command 'SCAN'")
	}
	return s.inner.Keys(ctx, pattern)
}

func (s *flakyStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if err := s.check(); err != nil {
		return 0, 0, err
	}
	return s.inner.IncrementWithTTL(ctx, key, window)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	return s.check()
}

// blockingStore never answers until the context gives up.
type blockingStore struct {
	*flakyStore
}

func (s *blockingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func newTestClient(store Store, clock *fakeClock, opts ...Option) *Client {
	base := []Option{
		WithClock(clock.Now),
		WithCooldown(30 * time.Second),
		WithLogger(zap.NewNop()),
	}
	return NewClient(store, append(base, opts...)...)
}

func TestClientSetThenGetRoundTrip(t *testing.T) {
	store := newFlakyStore(t)
	client := newTestClient(store, newFakeClock())
	ctx := context.Background()

	client.Set(ctx, "books:10:0", []byte(`["a"]`), time.Minute)

	value, ok := client.Get(ctx, "books:10:0").Value()
	require.True(t, ok)
	require.Equal(t, []byte(`["a"]`), value)

	require.False(t, client.Get(ctx, "books:20:0").IsHit())
	require.Equal(t, StateAvailable, client.Health().State())
}

func TestClientSetUsesDefaultTTL(t *testing.T) {
	store := newFlakyStore(t)
	clock := newFakeClock()
	store.inner.now = clock.Now
	client := newTestClient(store, clock, WithDefaultTTL(5*time.Second))
	ctx := context.Background()

	client.Set(ctx, "k", []byte("v"), 0)
	require.True(t, client.Get(ctx, "k").IsHit())

	clock.Advance(5 * time.Second)
	require.False(t, client.Get(ctx, "k").IsHit())
}

func TestClientDegradedGetIgnoresBackendValue(t *testing.T) {
	store := newFlakyStore(t)
	client := newTestClient(store, newFakeClock())
	ctx := context.Background()

	client.Set(ctx, "books:10:0", []byte("v"), time.Minute)

	store.broken.Store(true)
	require.False(t, client.Get(ctx, "books:10:0").IsHit())
	require.Equal(t, StateDegraded, client.Health().State())

	// backend is healthy again and still holds the value, but the client distrusts it
	store.broken.Store(false)
	before := store.calls.Load()
	require.False(t, client.Get(ctx, "books:10:0").IsHit())
	client.Set(ctx, "other", []byte("x"), time.Minute)
	client.Delete(ctx, "books:10:0")
	client.InvalidatePattern(ctx, "books:*")
	require.Equal(t, before, store.calls.Load(), "degraded client must not touch the backend")

	value, ok, err := store.inner.Get(ctx, "books:10:0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), value)
}

func TestClientRecoversAfterCooldown(t *testing.T) {
	store := newFlakyStore(t)
	clock := newFakeClock()
	client := newTestClient(store, clock)
	ctx := context.Background()

	store.broken.Store(true)
	client.Set(ctx, "k", []byte("v"), time.Minute)
	require.Equal(t, StateDegraded, client.Health().State())
	require.WithinDuration(t, clock.Now(), client.Health().DegradedSince(), 0)

	store.broken.Store(false)
	clock.Advance(29 * time.Second)
	client.Set(ctx, "k", []byte("v"), time.Minute)
	require.Equal(t, StateDegraded, client.Health().State())

	clock.Advance(time.Second)
	client.Set(ctx, "k", []byte("v"), time.Minute)
	require.Equal(t, StateAvailable, client.Health().State())
	require.True(t, client.Get(ctx, "k").IsHit())
}

func TestClientRecoveryIsOptimistic(t *testing.T) {
	store := newFlakyStore(t)
	clock := newFakeClock()
	client := newTestClient(store, clock)
	ctx := context.Background()

	store.broken.Store(true)
	client.Get(ctx, "k")
	clock.Advance(31 * time.Second)

	// still broken: the recovery flip happens, the real call fails, and the client re-degrades
	require.False(t, client.Get(ctx, "k").IsHit())
	require.Equal(t, StateDegraded, client.Health().State())
	require.WithinDuration(t, clock.Now(), client.Health().DegradedSince(), 0)
}

func TestClientLogsOncePerCooldownWindow(t *testing.T) {
	core, recorded := observer.New(zapcore.WarnLevel)
	store := newFlakyStore(t)
	clock := newFakeClock()
	client := newTestClient(store, clock, WithLogger(zap.New(core)))
	ctx := context.Background()

	store.broken.Store(true)
	for i := 0; i < 5; i++ {
		client.Get(ctx, "k")
		client.Set(ctx, "k", []byte("v"), 0)
	}
	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	require.Equal(t, "get", entry.ContextMap()["operation"])

	clock.Advance(10 * time.Second)
	client.Get(ctx, "k")
	require.Equal(t, 1, recorded.Len())

	clock.Advance(25 * time.Second)
	client.Get(ctx, "k")
	client.Get(ctx, "k")
	require.Equal(t, 2, recorded.Len())
}

func TestClientInvalidatePatternRemovesMatchingKeys(t *testing.T) {
	store := newFlakyStore(t)
	client := newTestClient(store, newFakeClock())
	ctx := context.Background()

	for _, key := range []string{"books:10:0", "books:5:5", "books:100:20", "reviews:1"} {
		client.Set(ctx, key, []byte("x"), time.Minute)
	}

	client.InvalidatePattern(ctx, "books:*")

	require.False(t, client.Get(ctx, "books:10:0").IsHit())
	require.False(t, client.Get(ctx, "books:5:5").IsHit())
	require.False(t, client.Get(ctx, "books:100:20").IsHit())
	require.True(t, client.Get(ctx, "reviews:1").IsHit())
}

func TestClientInvalidateEnumerationFailureIsAbsorbed(t *testing.T) {
	store := newFlakyStore(t)
	client := newTestClient(store, newFakeClock())
	ctx := context.Background()

	client.Set(ctx, "books:10:0", []byte("x"), time.Minute)
	store.keysErr.Store(true)

	require.NotPanics(t, func() { client.InvalidatePattern(ctx, "books:*") })
	require.Equal(t, StateDegraded, client.Health().State())
	require.ElementsMatch(t, []string{"books:*"}, client.PendingInvalidations())
}

func TestClientReplaysSkippedInvalidationOnRecovery(t *testing.T) {
	store := newFlakyStore(t)
	clock := newFakeClock()
	client := newTestClient(store, clock)
	ctx := context.Background()

	client.Set(ctx, "books:10:0", []byte("stale"), time.Hour)

	store.broken.Store(true)
	client.Get(ctx, "unrelated")
	store.broken.Store(false)

	client.InvalidatePattern(ctx, "books:*")
	_, stillThere, err := store.inner.Get(ctx, "books:10:0")
	require.NoError(t, err)
	require.True(t, stillThere)

	clock.Advance(30 * time.Second)
	require.False(t, client.Get(ctx, "books:10:0").IsHit())
	require.Empty(t, client.PendingInvalidations())
}

func TestClientTimeoutDegrades(t *testing.T) {
	store := &blockingStore{flakyStore: newFlakyStore(t)}
	client := newTestClient(store, newFakeClock(), WithOperationTimeout(20*time.Millisecond))

	start := time.Now()
	require.False(t, client.Get(context.Background(), "k").IsHit())
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, StateDegraded, client.Health().State())
}

func TestClientCallerCancellationDoesNotDegrade(t *testing.T) {
	store := &blockingStore{flakyStore: newFlakyStore(t)}
	client := newTestClient(store, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, client.Get(ctx, "k").IsHit())
	require.Equal(t, StateAvailable, client.Health().State())
}

func TestClientCallerDeadlineDoesNotDegrade(t *testing.T) {
	store := &blockingStore{flakyStore: newFlakyStore(t)}
	client := newTestClient(store, newFakeClock(), WithOperationTimeout(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.False(t, client.Get(ctx, "k").IsHit())
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, StateAvailable, client.Health().State())
}

func TestClientWithoutStoreAlwaysMisses(t *testing.T) {
	client := NewClient(nil, WithLogger(zap.NewNop()))
	ctx := context.Background()

	client.Set(ctx, "k", []byte("v"), time.Minute)
	client.InvalidatePattern(ctx, "books:*")
	require.False(t, client.Get(ctx, "k").IsHit())
	require.False(t, client.Enabled())
	require.Equal(t, "none", client.Backend())
}

func TestGetJSONDecodesAndDropsCorruptEntries(t *testing.T) {
	store := newFlakyStore(t)
	client := newTestClient(store, newFakeClock())
	ctx := context.Background()

	type page struct {
		Titles []string `json:"titles"`
	}
	client.SetJSON(ctx, "books:10:0", page{Titles: []string{"Dune"}}, time.Minute)

	got, ok := GetJSON[page](ctx, client, "books:10:0").Value()
	require.True(t, ok)
	require.Equal(t, []string{"Dune"}, got.Titles)

	client.Set(ctx, "books:10:0", []byte("{not json"), time.Minute)
	require.False(t, GetJSON[page](ctx, client, "books:10:0").IsHit())

	_, ok, err := store.inner.Get(ctx, "books:10:0")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, StateAvailable, client.Health().State())
}

func TestClientConcurrentUseUnderFailures(t *testing.T) {
	store := newFlakyStore(t)
	client := newTestClient(store, newFakeClock(), WithCooldown(time.Nanosecond))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if j%50 == 0 {
					store.broken.Store(i%2 == 0)
				}
				client.Set(ctx, "books:10:0", []byte("v"), time.Minute)
				client.Get(ctx, "books:10:0")
				client.InvalidatePattern(ctx, "books:*")
			}
		}(i)
	}
	wg.Wait()

	store.broken.Store(false)
	state := client.Health().State()
	require.Contains(t, []State{StateAvailable, StateDegraded}, state)
}
