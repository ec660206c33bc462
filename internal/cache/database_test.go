package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/bookshelf/internal/database/testutil"
	"github.com/charlesng35/bookshelf/internal/models"
)

func newTestDatabaseStore(t *testing.T) (*DatabaseStore, *fakeClock) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	require.NotNil(t, store)
	clock := newFakeClock()
	store.now = clock.Now
	return store, clock
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store, clock := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Set(ctx, "books:10:0", []byte(`[]`), time.Minute))
	require.NoError(t, store.Set(ctx, "books:10:0", []byte(`[{"id":"1"}]`), time.Minute))

	value, ok, err := store.Get(ctx, "books:10:0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`[{"id":"1"}]`), value)

	clock.Advance(2 * time.Minute)
	_, ok, err = store.Get(ctx, "books:10:0")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))
	clock.Advance(24 * time.Hour)
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, "forever", "missing"))
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, store.Delete(ctx))
}

func TestDatabaseStoreKeysMatchesPrefix(t *testing.T) {
	store, clock := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "books:10:0", []byte("a"), time.Second))
	require.NoError(t, store.Set(ctx, "books:5:0", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "booksXfoo", []byte("c"), time.Minute))
	require.NoError(t, store.Set(ctx, "reviews:1", []byte("d"), time.Minute))

	keys, err := store.Keys(ctx, "books:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"books:10:0", "books:5:0"}, keys)

	clock.Advance(2 * time.Second)
	keys, err = store.Keys(ctx, "books:*")
	require.NoError(t, err)
	require.Equal(t, []string{"books:5:0"}, keys)

	keys, err = store.Keys(ctx, "reviews:1")
	require.NoError(t, err)
	require.Equal(t, []string{"reviews:1"}, keys)
}

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	store, clock := newTestDatabaseStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	clock.Advance(15 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 45*time.Second, ttl)

	clock.Advance(time.Minute)
	count, _, err = store.IncrementWithTTL(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, clock := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("b"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("c"), 0))

	clock.Advance(time.Minute)
	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.CacheEntry
	require.NoError(t, store.db.Order("key").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	require.Equal(t, "forever", remaining[0].Key)
	require.Equal(t, "long", remaining[1].Key)
}

func TestClientOverDatabaseStore(t *testing.T) {
	store, _ := newTestDatabaseStore(t)
	client := NewClient(store)
	ctx := context.Background()

	client.SetJSON(ctx, "books:10:0", []string{"Dune"}, 0)
	client.SetJSON(ctx, "books:5:0", []string{"Emma"}, 0)

	result := GetJSON[[]string](ctx, client, "books:10:0")
	value, ok := result.Value()
	require.True(t, ok)
	require.Equal(t, []string{"Dune"}, value)

	client.InvalidatePattern(ctx, "books:*")
	require.False(t, client.Get(ctx, "books:10:0").IsHit())
	require.False(t, client.Get(ctx, "books:5:0").IsHit())
	require.Equal(t, "database", client.Backend())
}
