package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/themeshot/internal/models"
	"github.com/digkill/themeshot/internal/repository/memory"
)

func TestGrantByEmail(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.CreateUser(ctx, &models.User{ID: "u-1", Email: "a@example.com"}))
	svc := NewUserService(store, NewLedger(store, store, testLogger(), nil))

	got, err := svc.GrantByEmail(ctx, "A@example.com", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Balance)

	_, err = svc.GrantByEmail(ctx, "missing@example.com", 100)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.GrantByEmail(ctx, "a@example.com", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.UserSummary{{ID: "u-1", Email: "a@example.com", Balance: 100}}, users)
}
