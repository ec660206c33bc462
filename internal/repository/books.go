package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/bookshelf/internal/models"
)

// BookRepository persists books with gorm.
type BookRepository struct {
	db *gorm.DB
}

// NewBookRepository constructs a gorm-backed book repository.
func NewBookRepository(db *gorm.DB) (*BookRepository, error) {
	if db == nil {
		return nil, errors.New("book repository: db is required")
	}
	return &BookRepository{db: db}, nil
}

// FindBooks returns up to limit books skipping offset, newest first.
func (r *BookRepository) FindBooks(ctx context.Context, limit, offset int) ([]models.Book, error) {
	// limit is caller controlled and may be huge; let Find grow the slice
	books := make([]models.Book, 0)
	err := r.db.WithContext(ensuredContext(ctx)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	return books, nil
}

// SaveBook inserts book, assigning its identifier and timestamps.
func (r *BookRepository) SaveBook(ctx context.Context, book *models.Book) error {
	if err := r.db.WithContext(ensuredContext(ctx)).Create(book).Error; err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	return nil
}

// FindBookByID returns the book or nil when no row matches.
func (r *BookRepository) FindBookByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ensuredContext(ctx)).Take(&book, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book %s: %w", id, err)
	}
	return &book, nil
}
