package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/bookshelf/internal/cache"
	"github.com/charlesng35/bookshelf/internal/models"
	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
	"github.com/charlesng35/bookshelf/pkg/logger"
	"github.com/charlesng35/bookshelf/pkg/metrics"
)

const (
	// DefaultListLimit is the page size used when callers do not supply one.
	DefaultListLimit = 10
	// DefaultListOffset is the offset used when callers do not supply one.
	DefaultListOffset = 0

	booksCacheNamespace = "books:"
)

// BookRepository is the persistence contract the catalog depends on.
type BookRepository interface {
	FindBooks(ctx context.Context, limit, offset int) ([]models.Book, error)
	SaveBook(ctx context.Context, book *models.Book) error
	// FindBookByID returns nil without error when no book matches.
	FindBookByID(ctx context.Context, id string) (*models.Book, error)
}

// BookService serves the book catalog with cache-aside listings.
type BookService struct {
	repo  BookRepository
	cache *cache.Client
	log   *zap.Logger
}

// NewBookService constructs a catalog service. A nil cache client disables caching.
func NewBookService(repo BookRepository, cacheClient *cache.Client) (*BookService, error) {
	if repo == nil {
		return nil, errors.New("book service: repository is required")
	}
	if cacheClient == nil {
		cacheClient = cache.NewClient(nil)
	}
	return &BookService{
		repo:  repo,
		cache: cacheClient,
		log:   logger.WithModule("books"),
	}, nil
}

// CreateBookInput captures the fields of a new book.
type CreateBookInput struct {
	Title       string
	Author      string
	Description *string
}

// ListCacheKey returns the cache key of one listing page.
func ListCacheKey(limit, offset int) string {
	return fmt.Sprintf("%s%d:%d", booksCacheNamespace, limit, offset)
}

// List returns up to limit books skipping offset, newest first. Pages are served from
// the cache when possible and written back on a miss.
func (s *BookService) List(ctx context.Context, limit, offset int) ([]models.Book, error) {
	if s == nil {
		return nil, errors.New("book service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	if limit < 0 {
		return nil, apperrors.Validation("limit", "Limit must be a non-negative integer")
	}
	if offset < 0 {
		return nil, apperrors.Validation("offset", "Offset must be a non-negative integer")
	}

	key := ListCacheKey(limit, offset)
	if books, ok := cache.GetJSON[[]models.Book](ctx, s.cache, key).Value(); ok {
		s.log.Debug("book listing served from cache", zap.String("key", key))
		return books, nil
	}

	books, err := s.repo.FindBooks(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("book service: list books: %w", err)
	}

	s.cache.SetJSON(ctx, key, books, 0)
	return books, nil
}

// Create validates and persists a book, then drops every cached listing page.
func (s *BookService) Create(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if s == nil {
		return nil, errors.New("book service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	book := &models.Book{
		Title:       input.Title,
		Author:      input.Author,
		Description: input.Description,
	}
	book.Normalise()

	if book.Title == "" {
		return nil, apperrors.Validation("title", "Title and author are required")
	}
	if book.Author == "" {
		return nil, apperrors.Validation("author", "Title and author are required")
	}

	if err := s.repo.SaveBook(ctx, book); err != nil {
		return nil, fmt.Errorf("book service: create book: %w", err)
	}

	// any page may now be stale
	s.cache.InvalidatePattern(ctx, booksCacheNamespace+"*")

	metrics.EntitiesCreated.WithLabelValues("book").Inc()
	s.log.Info("book created", zap.String("book_id", book.ID))
	return book, nil
}

// GetByID looks a book up directly in persistence, bypassing the cache.
func (s *BookService) GetByID(ctx context.Context, id string) (*models.Book, error) {
	if s == nil {
		return nil, errors.New("book service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, bookNotFound(id)
	}

	book, err := s.repo.FindBookByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("book service: get book: %w", err)
	}
	if book == nil {
		return nil, bookNotFound(id)
	}
	return book, nil
}
