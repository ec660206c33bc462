package models

import "strings"

// Book is a catalog entry.
type Book struct {
	BaseModel

	Title       string  `gorm:"type:varchar(255);not null" json:"title"`
	Author      string  `gorm:"type:varchar(255);not null" json:"author"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
}

// Normalise trims user supplied text and drops an empty description.
func (b *Book) Normalise() {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	if b.Description != nil {
		trimmed := strings.TrimSpace(*b.Description)
		if trimmed == "" {
			b.Description = nil
		} else {
			b.Description = &trimmed
		}
	}
}
