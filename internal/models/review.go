package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a reader's rating of a single book. Reviews are immutable once created.
type Review struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	BookID       string    `gorm:"size:36;not null;index;index:idx_reviews_book_created,priority:1" json:"book_id"`
	ReviewerName string    `gorm:"type:varchar(255);not null" json:"reviewer_name"`
	Rating       int       `gorm:"not null" json:"rating"`
	Comment      *string   `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt    time.Time `gorm:"index;index:idx_reviews_book_created,priority:2" json:"created_at"`

	// deleting a book removes its reviews
	Book *Book `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate ensures UUID identifiers are generated automatically.
func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Normalise trims user supplied text and drops an empty comment.
func (r *Review) Normalise() {
	r.ReviewerName = strings.TrimSpace(r.ReviewerName)
	if r.Comment != nil {
		trimmed := strings.TrimSpace(*r.Comment)
		if trimmed == "" {
			r.Comment = nil
		} else {
			r.Comment = &trimmed
		}
	}
}

// ValidRating reports whether rating lies in the inclusive [MinRating, MaxRating] range.
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
