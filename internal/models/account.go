package models

import (
	"strings"
	"time"
)

// Account represents a registered user of the store.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DisplayName  string    `json:"displayName" gorm:"type:varchar(100)"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"` // never serialized
	Role         Role      `json:"role" gorm:"type:varchar(16);not null;default:free"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity returns the claim snapshot for the account's current state.
func (a *Account) Identity() Identity {
	return Identity{AccountID: a.ID, Email: a.Email, Role: a.Role}
}

// Summary returns the public view of the account embedded in other resources.
func (a *Account) Summary() *AccountSummary {
	return &AccountSummary{ID: a.ID, DisplayName: a.DisplayName, Email: a.Email, Role: a.Role}
}

// AccountSummary is the author block rendered inside posts.
type AccountSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// NormalizeEmail trims and lower-cases an address. Uniqueness is checked on this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
