package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/bookshelf/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	return db.AutoMigrate(
		&models.Book{},
		&models.Review{},
		&models.CacheEntry{},
	)
}

// SeedData inserts a small demo catalogue when the books table is empty.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Book{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range demoCatalogue() {
			book := seed.book
			if err := tx.Create(&book).Error; err != nil {
				return err
			}
			for _, review := range seed.reviews {
				review.BookID = book.ID
				if err := tx.Create(&review).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

type seedBook struct {
	book    models.Book
	reviews []models.Review
}

func demoCatalogue() []seedBook {
	describe := func(s string) *string { return &s }
	return []seedBook{
		{
			book: models.Book{
				Title:       "The Pragmatic Programmer",
				Author:      "Andrew Hunt, David Thomas",
				Description: describe("From journeyman to master."),
			},
			reviews: []models.Review{
				{ReviewerName: "Ada", Rating: 5},
				{ReviewerName: "Linus", Rating: 4, Comment: describe("Still relevant.")},
			},
		},
		{
			book: models.Book{
				Title:  "The Go Programming Language",
				Author: "Alan Donovan, Brian Kernighan",
			},
			reviews: []models.Review{
				{ReviewerName: "Rob", Rating: 5},
			},
		},
		{
			book: models.Book{
				Title:  "Designing Data-Intensive Applications",
				Author: "Martin Kleppmann",
			},
		},
	}
}
