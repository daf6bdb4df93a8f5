package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/digkill/themeshot/internal/auth"
	"github.com/digkill/themeshot/internal/repository/memory"
)

func newAuthFixture(t *testing.T) (*AuthService, *memory.Store, *auth.TokenIssuer) {
	t.Helper()
	store := memory.NewStore()
	tokens := auth.NewTokenIssuer("access", "refresh", time.Hour, 24*time.Hour)
	ledger := NewLedger(store, store, testLogger(), nil)
	return NewAuthService(store, ledger, tokens, testLogger(), WithHashCost(bcrypt.MinCost)), store, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newAuthFixture(t)

	user, err := svc.Register(ctx, "  Alice@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	_, _, err = store.AddCredits(ctx, user.ID, 4, "tx-1")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.Equal(t, 4, res.Credits)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	id, err := svc.VerifyToken(ctx, "Bearer "+res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.Equal(t, "alice@example.com", id.Email)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "missing email", password: "secret1", wantErr: ErrInvalidInput},
		{name: "missing password", email: "a@example.com", wantErr: ErrInvalidInput},
		{name: "bad email", email: "not-an-email", password: "secret1", wantErr: ErrInvalidInput},
		{name: "short password", email: "a@example.com", password: "12345", wantErr: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := svc.Register(ctx, "taken@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "TAKEN@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthFixture(t)
	_, err := svc.Register(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "bob@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenRejects(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newAuthFixture(t)

	pair, err := tokens.Issue("u-1", "a@example.com")
	require.NoError(t, err)

	for _, token := range []string{"", "Bearer ", "garbage", pair.RefreshToken} {
		_, err := svc.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized, token)
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	svc, _, tokens := newAuthFixture(t)

	user, err := svc.Register(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	pair, err := tokens.Issue(user.ID, user.Email)
	require.NoError(t, err)

	fresh, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	id, err := svc.VerifyToken(ctx, fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Refresh(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	orphan, err := tokens.Issue("u-gone", "gone@example.com")
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, orphan.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
