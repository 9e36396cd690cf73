package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amarflybot/curly-octo-memory/internal/rbac"
	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

// PolicyCleaner removes every policy tuple referencing a user. The rbac
// management service satisfies it; deleting a directory account must never
// leave dangling grants behind.
type PolicyCleaner interface {
	DeleteUser(ctx context.Context, username string) error
}

// CleanerFunc adapts a function to PolicyCleaner.
type CleanerFunc func(ctx context.Context, username string) error

// DeleteUser implements PolicyCleaner.
func (f CleanerFunc) DeleteUser(ctx context.Context, username string) error {
	return f(ctx, username)
}

// CreateUserInput carries the fields for a new account.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
}

// Service handles directory business logic.
type Service struct {
	repo     Repository
	policies PolicyCleaner
}

// NewService builds a Service instance. policies may be nil for callers that
// never delete accounts.
func NewService(repo Repository, policies PolicyCleaner) *Service {
	return &Service{repo: repo, policies: policies}
}

// Exists reports whether the username is known to the directory.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	return s.repo.Exists(ctx, username)
}

// FindByUsername returns the account for a username.
func (s *Service) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.FindByUsername(ctx, username)
}

// FindByID returns the account for an ID.
func (s *Service) FindByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// LookupUsername resolves an account ID to its username.
func (s *Service) LookupUsername(ctx context.Context, id string) (string, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Create registers a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (*User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("username required: %w", shared.ErrDenied)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hashed),
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes the account and cascades the removal of every policy tuple
// referencing it. The superuser cannot be deleted.
func (s *Service) Delete(ctx context.Context, username string) error {
	if username == rbac.RootUser {
		return fmt.Errorf("superuser cannot be deleted: %w", shared.ErrDenied)
	}
	if err := s.repo.Delete(ctx, username); err != nil {
		return err
	}
	if s.policies != nil {
		if err := s.policies.DeleteUser(ctx, username); err != nil {
			return err
		}
	}
	return nil
}
