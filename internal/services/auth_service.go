package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kalm/internal/apperr"
	"kalm/internal/models"
	"kalm/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long a session token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

const invalidCredentials = "invalid credentials"

// Claims is the signed payload of a session token. It is a snapshot of the
// account at issue time; role changes show up only in a reissued token.
type Claims struct {
	models.Identity
	jwt.StandardClaims
}

// AuthService handles registration, login and session tokens.
type AuthService struct {
	accounts  repositories.AccountRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	events    EventPublisher
	log       logrus.FieldLogger
}

// NewAuthService creates a new AuthService. A zero tokenTTL selects DefaultTokenTTL.
func NewAuthService(accounts repositories.AccountRepository, jwtSecret string, tokenTTL time.Duration, events EventPublisher, log logrus.FieldLogger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &AuthService{
		accounts:  accounts,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		events:    events,
		log:       loggerOrDefault(log),
	}
}

// Register creates a free-tier account. The caller cannot choose the role.
func (s *AuthService) Register(ctx context.Context, displayName, email, password string) (*models.Account, error) {
	displayName = strings.TrimSpace(displayName)
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.InvalidInput("displayName, email and password are required")
	}

	// A taken email is a conflict whatever the other fields hold.
	existing, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, apperr.Conflict("email already registered")
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if displayName == "" || password == "" {
		return nil, apperr.InvalidInput("displayName, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &models.Account{
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleFree,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	s.log.WithField("account_id", account.ID).Info("account registered")
	publishEvent(ctx, s.events, s.log, EventAccountRegistered, map[string]interface{}{
		"accountId": account.ID,
		"email":     account.Email,
	})
	return account, nil
}

// Authenticate checks credentials and issues a session token. Unknown email
// and wrong password produce the same error.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (string, *models.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil, apperr.Unauthorized(invalidCredentials)
		}
		return "", nil, fmt.Errorf("failed to load account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.Unauthorized(invalidCredentials)
	}

	token, err := s.issue(account)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// ReissueWithRole signs a fresh token reflecting the account's current role.
func (s *AuthService) ReissueWithRole(account *models.Account) (string, error) {
	return s.issue(account)
}

func (s *AuthService) issue(account *models.Account) (string, error) {
	now := jwt.TimeFunc()
	claims := Claims{
		Identity: account.Identity(),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// DecodeToken verifies signature and expiry and returns the embedded identity.
// The account store is never consulted.
func (s *AuthService) DecodeToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, apperr.Unauthorized("token required")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "invalid or expired token", err)
	}
	if !token.Valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	if claims.ExpiresAt == 0 {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	if claims.AccountID == "" || !claims.Role.Valid() {
		return nil, apperr.Unauthorized("invalid token claims")
	}
	return claims, nil
}

// EnsureAdmin creates an admin account with the given credentials unless an
// account with that email already exists. An empty email disables it.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	if password == "" {
		return apperr.InvalidInput("admin password is required")
	}

	_, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to check admin account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := &models.Account{
		DisplayName:  "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := s.accounts.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}
	s.log.WithField("account_id", admin.ID).Info("bootstrap admin account created")
	return nil
}

// DecodeIdentity is DecodeToken reduced to the caller identity.
func (s *AuthService) DecodeIdentity(tokenString string) (*models.Identity, error) {
	claims, err := s.DecodeToken(tokenString)
	if err != nil {
		return nil, err
	}
	id := claims.Identity
	return &id, nil
}
