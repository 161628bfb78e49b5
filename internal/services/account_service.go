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

// TokenIssuer signs session tokens for an account's current state.
type TokenIssuer interface {
	ReissueWithRole(account *models.Account) (string, error)
}

// AccountUpdate is the self-service profile patch. Password and role are not
// part of it; such keys in a request body are dropped by the decoder.
type AccountUpdate struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
}

// AccountService handles profile reads, updates and role changes.
type AccountService struct {
	accounts repositories.AccountRepository
	tokens   TokenIssuer
	events   EventPublisher
	log      logrus.FieldLogger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts repositories.AccountRepository, tokens TokenIssuer, events EventPublisher, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		accounts: accounts,
		tokens:   tokens,
		events:   events,
		log:      loggerOrDefault(log),
	}
}

func (s *AccountService) load(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

// Profile returns the caller's own account.
func (s *AccountService) Profile(ctx context.Context, actor *models.Identity) (*models.Account, error) {
	if actor == nil || actor.AccountID == "" {
		return nil, apperr.Unauthorized("token required")
	}
	return s.load(ctx, actor.AccountID)
}

// List returns every account.
func (s *AccountService) List(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Get returns the account id to its owner or to an admin.
func (s *AccountService) Get(ctx context.Context, actor *models.Identity, id string) (*models.Account, error) {
	if !authz.CanModifyOwned(actor, id).Allowed {
		return nil, apperr.Forbidden("you can only view your own account")
	}
	return s.load(ctx, id)
}

// Update applies a profile patch. Non-admin callers may only target themselves.
func (s *AccountService) Update(ctx context.Context, actor *models.Identity, id string, patch AccountUpdate) (*models.Account, error) {
	if !authz.CanModifyOwned(actor, id).Allowed {
		return nil, apperr.Forbidden("you can only update your own account")
	}
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return nil, apperr.InvalidInput("displayName cannot be empty")
		}
		account.DisplayName = name
	}
	if patch.Email != nil {
		email := models.NormalizeEmail(*patch.Email)
		if email == "" {
			return nil, apperr.InvalidInput("email cannot be empty")
		}
		if email != account.Email {
			existing, err := s.accounts.GetByEmail(ctx, email)
			if err == nil && existing != nil && existing.ID != account.ID {
				return nil, apperr.Conflict("email already registered")
			}
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
		}
		account.Email = email
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, apperr.Conflict("email already registered")
		case errors.Is(err, repositories.ErrNotFound):
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// SetRole assigns any tier to an account. Route access is restricted to admins.
func (s *AccountService) SetRole(ctx context.Context, id, role string) (*models.Account, error) {
	r, ok := models.ParseRole(role)
	if !ok {
		return nil, apperr.InvalidInput("invalid role")
	}
	if err := s.accounts.UpdateRole(ctx, id, r); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"account_id": id, "role": r}).Info("account role changed")
	publishEvent(ctx, s.events, s.log, EventAccountRoleChanged, map[string]interface{}{
		"accountId": id,
		"role":      string(r),
	})
	return account, nil
}

// Upgrade promotes the caller to premium and reissues their token so the
// new role applies to the next request.
func (s *AccountService) Upgrade(ctx context.Context, actor *models.Identity) (*models.Account, string, error) {
	if actor == nil || actor.AccountID == "" {
		return nil, "", apperr.Unauthorized("token required")
	}
	if err := s.accounts.UpdateRole(ctx, actor.AccountID, models.RolePremium); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", apperr.NotFound("account not found")
		}
		return nil, "", fmt.Errorf("failed to upgrade account: %w", err)
	}
	account, err := s.load(ctx, actor.AccountID)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.ReissueWithRole(account)
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("account_id", account.ID).Info("account upgraded to premium")
	publishEvent(ctx, s.events, s.log, EventAccountUpgraded, map[string]interface{}{
		"accountId": account.ID,
		"from":      string(actor.Role),
	})
	return account, token, nil
}

// Delete removes an account. Route access is restricted to admins.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("account not found")
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}
	publishEvent(ctx, s.events, s.log, EventAccountDeleted, map[string]interface{}{"accountId": id})
	return nil
}
