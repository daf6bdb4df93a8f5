package service

import (
	"context"
	"fmt"

	"github.com/digkill/themeshot/internal/models"
)

// UserService backs operator tooling: listing accounts and granting credits.
type UserService struct {
	users  UserStore
	ledger *Ledger
}

func NewUserService(users UserStore, ledger *Ledger) *UserService {
	return &UserService{users: users, ledger: ledger}
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GrantByEmail credits amount to the account registered under email.
func (s *UserService) GrantByEmail(ctx context.Context, email string, amount int) (*models.UserSummary, error) {
	email = normalizeEmail(email)
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	res, err := s.ledger.Credit(ctx, user.ID, amount, "")
	if err != nil {
		return nil, err
	}
	return &models.UserSummary{ID: user.ID, Email: user.Email, Balance: res.Balance}, nil
}
