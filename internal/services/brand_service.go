package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kalm/internal/apperr"
	"kalm/internal/models"
	"kalm/internal/repositories"

	"github.com/sirupsen/logrus"
)

// BrandInput is the body of a brand creation request.
type BrandInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Origin      string `json:"origin" validate:"max=100"`
	Description string `json:"description"`
}

// BrandPatch is a partial brand update.
type BrandPatch struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Origin      *string `json:"origin" validate:"omitempty,max=100"`
	Description *string `json:"description"`
}

// BrandService handles brand CRUD.
type BrandService struct {
	repo   repositories.BrandRepository
	events EventPublisher
	log    logrus.FieldLogger
}

// NewBrandService creates a new BrandService.
func NewBrandService(repo repositories.BrandRepository, events EventPublisher, log logrus.FieldLogger) *BrandService {
	return &BrandService{repo: repo, events: events, log: loggerOrDefault(log)}
}

func (s *BrandService) ListBrands(ctx context.Context) ([]models.Brand, error) {
	brands, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	return brands, nil
}

func (s *BrandService) GetBrandByID(ctx context.Context, id string) (*models.Brand, error) {
	brand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("brand not found")
		}
		return nil, fmt.Errorf("failed to load brand: %w", err)
	}
	return brand, nil
}

func (s *BrandService) CreateBrand(ctx context.Context, in BrandInput) (*models.Brand, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidInput("name is required")
	}
	brand := &models.Brand{
		Name:        name,
		Origin:      strings.TrimSpace(in.Origin),
		Description: in.Description,
	}
	if err := s.repo.Create(ctx, brand); err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}
	return brand, nil
}

func (s *BrandService) UpdateBrand(ctx context.Context, id string, patch BrandPatch) (*models.Brand, error) {
	brand, err := s.GetBrandByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.InvalidInput("name cannot be empty")
		}
		brand.Name = name
	}
	if patch.Origin != nil {
		brand.Origin = strings.TrimSpace(*patch.Origin)
	}
	if patch.Description != nil {
		brand.Description = *patch.Description
	}
	if err := s.repo.Update(ctx, brand); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("brand not found")
		}
		return nil, fmt.Errorf("failed to update brand: %w", err)
	}
	return brand, nil
}

// DeleteBrand removes a brand. Products that reference it are left untouched
// and render without a brand afterwards.
func (s *BrandService) DeleteBrand(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("brand not found")
		}
		return fmt.Errorf("failed to delete brand: %w", err)
	}
	publishEvent(ctx, s.events, s.log, EventBrandDeleted, map[string]interface{}{"brandId": id})
	return nil
}
