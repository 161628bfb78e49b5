package repositories

import (
	"context"
	"fmt"

	"kalm/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMBrandRepository is a GORM implementation of BrandRepository.
type GORMBrandRepository struct {
	db *gorm.DB
}

// NewGORMBrandRepository creates a new instance of GORMBrandRepository.
func NewGORMBrandRepository(db *gorm.DB) *GORMBrandRepository {
	return &GORMBrandRepository{db: db}
}

func (r *GORMBrandRepository) List(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	return brands, nil
}

func (r *GORMBrandRepository) GetByID(ctx context.Context, id string) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.WithContext(ctx).First(&brand, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("brand with ID %s: %w", id, translate(err))
	}
	return &brand, nil
}

// GetByIDs retrieves the brands whose IDs are listed. Unknown IDs are skipped.
func (r *GORMBrandRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Brand, error) {
	var brands []models.Brand
	if len(ids) == 0 {
		return brands, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&brands).Error; err != nil {
		return nil, fmt.Errorf("failed to get brands by ID: %w", err)
	}
	return brands, nil
}

func (r *GORMBrandRepository) Create(ctx context.Context, brand *models.Brand) error {
	if brand.ID == "" {
		brand.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(brand).Error; err != nil {
		return fmt.Errorf("failed to create brand: %w", translate(err))
	}
	return nil
}

func (r *GORMBrandRepository) Update(ctx context.Context, brand *models.Brand) error {
	res := r.db.WithContext(ctx).Model(brand).Select("*").Omit("created_at").Updates(brand)
	if res.Error != nil {
		return fmt.Errorf("failed to update brand: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("brand with ID %s: %w", brand.ID, ErrNotFound)
	}
	return nil
}

// Delete removes the brand only. Products referencing it keep their BrandID.
func (r *GORMBrandRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Brand{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete brand: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("brand with ID %s: %w", id, ErrNotFound)
	}
	return nil
}
