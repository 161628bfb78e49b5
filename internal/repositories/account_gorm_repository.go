package repositories

import (
	"context"
	"fmt"

	"kalm/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMAccountRepository is a GORM implementation of AccountRepository.
type GORMAccountRepository struct {
	db *gorm.DB
}

// NewGORMAccountRepository creates a new instance of GORMAccountRepository.
func NewGORMAccountRepository(db *gorm.DB) *GORMAccountRepository {
	return &GORMAccountRepository{
		db: db,
	}
}

// Create creates a new account in the database.
func (r *GORMAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.Email = models.NormalizeEmail(account.Email)
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create account: %w", translate(err))
	}
	return nil
}

// GetByEmail retrieves an account by email, ignoring letter case.
func (r *GORMAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "email = ?", email).Error; err != nil {
		return nil, fmt.Errorf("account with email %s: %w", email, translate(err))
	}
	return &account, nil
}

// GetByID retrieves an account by its ID.
func (r *GORMAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("account with ID %s: %w", id, translate(err))
	}
	return &account, nil
}

// GetByIDs retrieves the accounts whose IDs are listed. Unknown IDs are skipped.
func (r *GORMAccountRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Account, error) {
	var accounts []models.Account
	if len(ids) == 0 {
		return accounts, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to get accounts by ID: %w", err)
	}
	return accounts, nil
}

// List retrieves all accounts ordered by creation time.
func (r *GORMAccountRepository) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Update writes the profile fields of an existing account. Role and password
// hash are not part of the column set.
func (r *GORMAccountRepository) Update(ctx context.Context, account *models.Account) error {
	account.Email = models.NormalizeEmail(account.Email)
	res := r.db.WithContext(ctx).Model(account).
		Select("display_name", "email", "updated_at").
		Updates(account)
	if res.Error != nil {
		return fmt.Errorf("failed to update account: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account with ID %s: %w", account.ID, ErrNotFound)
	}
	return nil
}

// UpdateRole sets the role of an account.
func (r *GORMAccountRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return fmt.Errorf("failed to update account role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete deletes an account by its ID.
func (r *GORMAccountRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Account{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete account: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account with ID %s: %w", id, ErrNotFound)
	}
	return nil
}
