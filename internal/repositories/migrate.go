package repositories

import (
	"kalm/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables for every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Account{}, &models.Brand{}, &models.Product{}, &models.Post{})
}
