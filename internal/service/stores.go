package service

import (
	"context"

	"github.com/digkill/themeshot/internal/fetch"
	"github.com/digkill/themeshot/internal/models"
)

// UserStore is satisfied by repository.UserRepository and memory.Store.
// FindUserByEmail returns nil, nil for unknown addresses.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
}

// CreditStore must apply AddCredits and DebitOne atomically per user.
type CreditStore interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	AddCredits(ctx context.Context, userID string, amount int, transactionID string) (balance int, applied bool, err error)
	DebitOne(ctx context.Context, userID string) (balance int, ok bool, err error)
}

type UsageStore interface {
	LogUsage(ctx context.Context, entry *models.UsageLog) error
}

// Generator runs one model on a provider and returns the output image URL.
type Generator interface {
	Generate(ctx context.Context, model string, input map[string]any) (string, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Image, error)
}

type ObjectStorage interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
