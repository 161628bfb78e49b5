package repositories

import (
	"context"

	"kalm/internal/models"
)

// BrandRepository defines the interface for brand data access.
type BrandRepository interface {
	List(ctx context.Context) ([]models.Brand, error)
	GetByID(ctx context.Context, id string) (*models.Brand, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Brand, error)
	Create(ctx context.Context, brand *models.Brand) error
	Update(ctx context.Context, brand *models.Brand) error
	Delete(ctx context.Context, id string) error
}
