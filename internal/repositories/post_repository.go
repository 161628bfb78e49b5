package repositories

import (
	"context"

	"kalm/internal/models"
)

// PostRepository defines the interface for post data access.
type PostRepository interface {
	List(ctx context.Context) ([]models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}
