package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/amarflybot/curly-octo-memory/internal/identity"
	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

// Accounts is the slice of the directory the auth flow needs.
type Accounts interface {
	FindByUsername(ctx context.Context, username string) (*identity.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	accounts Accounts
	tokens   *TokenManager
}

// NewService constructs a new Service.
func NewService(accounts Accounts, tokens *TokenManager) *Service {
	return &Service{accounts: accounts, tokens: tokens}
}

// Authenticate validates username/password credentials. Failures never
// reveal whether the account exists.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*identity.User, error) {
	user, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *identity.User, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
