package models

import "time"

// DefaultPostCategory is assigned when a post is created without a category.
const DefaultPostCategory = "general"

// Post represents a blog entry. AuthorID is fixed at creation.
type Post struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title     string          `json:"title" gorm:"type:varchar(200);not null"`
	Body      string          `json:"body" gorm:"type:text;not null"`
	Category  string          `json:"category" gorm:"type:varchar(50);not null;default:general"`
	AuthorID  string          `json:"authorId" gorm:"type:varchar(36);index;not null"`
	Author    *AccountSummary `json:"author" gorm:"-"`
	CreatedAt time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
