package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/bookshelf/internal/cache"
	"github.com/charlesng35/bookshelf/internal/database/testutil"
	"github.com/charlesng35/bookshelf/internal/models"
	"github.com/charlesng35/bookshelf/internal/repository"
)

type testEnv struct {
	db      *gorm.DB
	store   *countingStore
	cache   *cache.Client
	books   *BookService
	reviews *ReviewService
}

func newTestEnv(t *testing.T, opts ...cache.Option) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	inner, err := cache.NewMemoryStore(cache.DefaultMemoryConfig())
	require.NoError(t, err)
	store := &countingStore{Store: inner}

	client := cache.NewClient(store, append([]cache.Option{cache.WithLogger(zap.NewNop())}, opts...)...)

	bookRepo, err := repository.NewBookRepository(db)
	require.NoError(t, err)
	reviewRepo, err := repository.NewReviewRepository(db)
	require.NoError(t, err)

	books, err := NewBookService(bookRepo, client)
	require.NoError(t, err)
	reviews, err := NewReviewService(reviewRepo, books)
	require.NoError(t, err)

	return &testEnv{db: db, store: store, cache: client, books: books, reviews: reviews}
}

// countingStore records backend traffic and can be switched into a failing mode.
type countingStore struct {
	cache.Store
	calls  atomic.Int64
	broken atomic.Bool
}

var errCacheDown = errors.New("redis: connection refused")

func (s *countingStore) hit(ctx context.Context) error {
	s.calls.Add(1)
	// a network backend gives up on a cancelled request
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.broken.Load() {
		return errCacheDown
	}
	return nil
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.hit(ctx); err != nil {
		return nil, false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.hit(ctx); err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *countingStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.hit(ctx); err != nil {
		return err
	}
	return s.Store.Delete(ctx, keys...)
}

func (s *countingStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := s.hit(ctx); err != nil {
		return nil, err
	}
	return s.Store.Keys(ctx, pattern)
}

// cancellingBookRepo ends the caller's request right after the book is stored, as
// when an HTTP client disconnects mid-request.
type cancellingBookRepo struct {
	BookRepository
	cancel context.CancelFunc
}

func (r *cancellingBookRepo) SaveBook(ctx context.Context, book *models.Book) error {
	err := r.BookRepository.SaveBook(ctx, book)
	r.cancel()
	return err
}

func strPtr(s string) *string {
	return &s
}
