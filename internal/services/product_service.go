package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kalm/internal/apperr"
	"kalm/internal/authz"
	"kalm/internal/models"
	"kalm/internal/repositories"

	"github.com/sirupsen/logrus"
)

// ProductInput is the body of a product creation request.
type ProductInput struct {
	Name              string   `json:"name" validate:"required,max=100"`
	BrandID           string   `json:"brandId" validate:"required"`
	Type              string   `json:"type" validate:"max=50"`
	Description       string   `json:"description"`
	Tags              []string `json:"tags"`
	ActiveIngredients []string `json:"activeIngredients"`
	Formula           string   `json:"formula"`
	PhotoURL          string   `json:"photoUrl" validate:"omitempty,url"`
}

// ProductPatch is a partial product update; nil fields are left unchanged.
type ProductPatch struct {
	Name              *string   `json:"name" validate:"omitempty,max=100"`
	BrandID           *string   `json:"brandId"`
	Type              *string   `json:"type" validate:"omitempty,max=50"`
	Description       *string   `json:"description"`
	Tags              *[]string `json:"tags"`
	ActiveIngredients *[]string `json:"activeIngredients"`
	Formula           *string   `json:"formula"`
	PhotoURL          *string   `json:"photoUrl" validate:"omitempty,url"`
}

// ProductListing is a product listing together with the tier it was computed for.
type ProductListing struct {
	Products []models.Product
	Role     models.Role
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	brands repositories.BrandRepository
	events EventPublisher
	log    logrus.FieldLogger
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, brands repositories.BrandRepository, events EventPublisher, log logrus.FieldLogger) *ProductService {
	return &ProductService{
		repo:   repo,
		brands: brands,
		events: events,
		log:    loggerOrDefault(log),
	}
}

// ListProducts returns the filtered, name-sorted catalogue. Free and anonymous
// callers get a truncated listing; the read itself never fails on role.
func (s *ProductService) ListProducts(ctx context.Context, actor *models.Identity, query, productType string) (*ProductListing, error) {
	filter := models.ProductFilter{
		Query: query,
		Type:  productType,
		Limit: authz.ProductLimit(actor),
	}
	products, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	if err := s.attachBrands(ctx, products); err != nil {
		return nil, err
	}
	return &ProductListing{Products: products, Role: authz.EffectiveRole(actor)}, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachBrand(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// FindProductsByName returns products whose name matches exactly, ignoring case.
func (s *ProductService) FindProductsByName(ctx context.Context, name string) ([]models.Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.InvalidInput("name is required")
	}
	products, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	if len(products) == 0 {
		return nil, apperr.NotFound("product not found")
	}
	if err := s.attachBrands(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct creates a product after checking that its brand exists.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.BrandID) == "" {
		return nil, apperr.InvalidInput("brandId is required")
	}
	brand, err := s.requireBrand(ctx, in.BrandID)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:              strings.TrimSpace(in.Name),
		BrandID:           brand.ID,
		Type:              strings.TrimSpace(in.Type),
		Description:       in.Description,
		Tags:              models.StringList(in.Tags),
		ActiveIngredients: models.StringList(in.ActiveIngredients),
		Formula:           in.Formula,
		PhotoURL:          in.PhotoURL,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	product.Brand = brand

	publishEvent(ctx, s.events, s.log, EventProductCreated, map[string]interface{}{
		"productId": product.ID,
		"brandId":   product.BrandID,
	})
	return product, nil
}

// UpdateProduct applies a patch. A replacement brand must resolve.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*models.Product, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.BrandID != nil {
		if strings.TrimSpace(*patch.BrandID) == "" {
			return nil, apperr.InvalidInput("brandId cannot be empty")
		}
		brand, err := s.requireBrand(ctx, *patch.BrandID)
		if err != nil {
			return nil, err
		}
		product.BrandID = brand.ID
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.InvalidInput("name cannot be empty")
		}
		product.Name = name
	}
	if patch.Type != nil {
		product.Type = strings.TrimSpace(*patch.Type)
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Tags != nil {
		product.Tags = models.StringList(*patch.Tags)
	}
	if patch.ActiveIngredients != nil {
		product.ActiveIngredients = models.StringList(*patch.ActiveIngredients)
	}
	if patch.Formula != nil {
		product.Formula = *patch.Formula
	}
	if patch.PhotoURL != nil {
		product.PhotoURL = *patch.PhotoURL
	}

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if err := s.attachBrand(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("product not found")
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	publishEvent(ctx, s.events, s.log, EventProductDeleted, map[string]interface{}{"productId": id})
	return nil
}

func (s *ProductService) load(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("product not found")
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return product, nil
}

func (s *ProductService) requireBrand(ctx context.Context, id string) (*models.Brand, error) {
	brand, err := s.brands.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("brand not found")
		}
		return nil, fmt.Errorf("failed to load brand: %w", err)
	}
	return brand, nil
}

// attachBrand resolves the product's brand. A dangling reference leaves Brand nil.
func (s *ProductService) attachBrand(ctx context.Context, product *models.Product) error {
	if product.BrandID == "" {
		return nil
	}
	brand, err := s.brands.GetByID(ctx, product.BrandID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			product.Brand = nil
			return nil
		}
		return fmt.Errorf("failed to load brand: %w", err)
	}
	product.Brand = brand
	return nil
}

func (s *ProductService) attachBrands(ctx context.Context, products []models.Product) error {
	ids := make([]string, 0, len(products))
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.BrandID == "" {
			continue
		}
		if _, ok := seen[p.BrandID]; ok {
			continue
		}
		seen[p.BrandID] = struct{}{}
		ids = append(ids, p.BrandID)
	}
	if len(ids) == 0 {
		return nil
	}

	brands, err := s.brands.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load brands: %w", err)
	}
	byID := make(map[string]*models.Brand, len(brands))
	for i := range brands {
		byID[brands[i].ID] = &brands[i]
	}
	for i := range products {
		products[i].Brand = byID[products[i].BrandID]
	}
	return nil
}
