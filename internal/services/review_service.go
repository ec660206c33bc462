package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/bookshelf/internal/models"
	"github.com/charlesng35/bookshelf/internal/repository"
	apperrors "github.com/charlesng35/bookshelf/pkg/errors"
	"github.com/charlesng35/bookshelf/pkg/logger"
	"github.com/charlesng35/bookshelf/pkg/metrics"
)

// ReviewRepository is the persistence contract for reviews.
type ReviewRepository interface {
	FindReviewsByBook(ctx context.Context, bookID string) ([]models.Review, error)
	SaveReview(ctx context.Context, review *models.Review) error
}

// BookLookup resolves the book a review belongs to.
type BookLookup interface {
	GetByID(ctx context.Context, id string) (*models.Book, error)
}

// ReviewService manages reviews of existing books. Reviews are never cached.
type ReviewService struct {
	repo  ReviewRepository
	books BookLookup
	log   *zap.Logger
}

// NewReviewService constructs a review service.
func NewReviewService(repo ReviewRepository, books BookLookup) (*ReviewService, error) {
	if repo == nil {
		return nil, errors.New("review service: repository is required")
	}
	if books == nil {
		return nil, errors.New("review service: book lookup is required")
	}
	return &ReviewService{
		repo:  repo,
		books: books,
		log:   logger.WithModule("reviews"),
	}, nil
}

// CreateReviewInput captures the fields of a new review.
type CreateReviewInput struct {
	BookID       string
	ReviewerName string
	Rating       int
	Comment      *string
}

// ListForBook returns the reviews of an existing book ordered by reviewer name.
func (s *ReviewService) ListForBook(ctx context.Context, bookID string) ([]models.Review, error) {
	if s == nil {
		return nil, errors.New("review service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	reviews, err := s.repo.FindReviewsByBook(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("review service: list reviews: %w", err)
	}
	return reviews, nil
}

// Create validates and persists a review of an existing book.
func (s *ReviewService) Create(ctx context.Context, input CreateReviewInput) (*models.Review, error) {
	if s == nil {
		return nil, errors.New("review service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	book, err := s.books.GetByID(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		BookID:       book.ID,
		ReviewerName: input.ReviewerName,
		Rating:       input.Rating,
		Comment:      input.Comment,
	}
	review.Normalise()

	if review.ReviewerName == "" {
		return nil, apperrors.Validation("reviewer_name", "Reviewer name and rating are required")
	}
	if !models.ValidRating(review.Rating) {
		return nil, apperrors.Validation("rating", fmt.Sprintf("Rating must be between %d and %d", models.MinRating, models.MaxRating))
	}

	if err := s.repo.SaveReview(ctx, review); err != nil {
		// the book was removed after the lookup
		if errors.Is(err, repository.ErrMissingReference) {
			return nil, bookNotFound(book.ID)
		}
		return nil, fmt.Errorf("review service: create review: %w", err)
	}

	metrics.EntitiesCreated.WithLabelValues("review").Inc()
	s.log.Info("review created", zap.String("review_id", review.ID), zap.String("book_id", review.BookID))
	return review, nil
}
