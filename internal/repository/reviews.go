package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/bookshelf/internal/models"
)

// ReviewRepository persists reviews with gorm.
type ReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository constructs a gorm-backed review repository.
func NewReviewRepository(db *gorm.DB) (*ReviewRepository, error) {
	if db == nil {
		return nil, errors.New("review repository: db is required")
	}
	return &ReviewRepository{db: db}, nil
}

// FindReviewsByBook returns every review of a book ordered by reviewer name, then age.
func (r *ReviewRepository) FindReviewsByBook(ctx context.Context, bookID string) ([]models.Review, error) {
	reviews := make([]models.Review, 0)
	err := r.db.WithContext(ensuredContext(ctx)).
		Where("book_id = ?", bookID).
		Order("reviewer_name ASC").
		Order("created_at ASC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("find reviews for book %s: %w", bookID, err)
	}
	return reviews, nil
}

// SaveReview inserts review. A review whose book vanished returns ErrMissingReference.
func (r *ReviewRepository) SaveReview(ctx context.Context, review *models.Review) error {
	err := r.db.WithContext(ensuredContext(ctx)).Omit("Book").Create(review).Error
	if isForeignKeyError(err) {
		return fmt.Errorf("save review: %w", errors.Join(ErrMissingReference, err))
	}
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}
