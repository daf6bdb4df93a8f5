package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/digkill/themeshot/internal/auth"
	"github.com/digkill/themeshot/internal/models"
	"github.com/digkill/themeshot/internal/repository"
)

const minPasswordLength = 6

type Identity struct {
	UserID string
	Email  string
}

type LoginResult struct {
	User    *models.User
	Tokens  *auth.TokenPair
	Credits int
}

type AuthService struct {
	users    UserStore
	ledger   *Ledger
	tokens   *auth.TokenIssuer
	validate *validator.Validate
	hashCost int
	log      *slog.Logger
}

type AuthOption func(*AuthService)

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) AuthOption {
	return func(s *AuthService) { s.hashCost = cost }
}

func NewAuthService(users UserStore, ledger *Ledger, tokens *auth.TokenIssuer, log *slog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    users,
		ledger:   ledger,
		tokens:   tokens,
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	var (
		hash string
		err  error
	)
	if s.hashCost > 0 {
		hash, err = auth.HashPassword(password, s.hashCost)
	} else {
		hash, err = auth.HashPassword(password)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if s.log != nil {
		s.log.Info("user registered", "user_id", user.ID)
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrInvalidInput)
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	credits, err := s.ledger.GetBalance(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Tokens: tokens, Credits: credits}, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The account
// must still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token required", ErrInvalidInput)
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.users.FindUserByEmail(ctx, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || user.ID != claims.Subject {
		return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
	}
	return s.tokens.Issue(user.ID, user.Email)
}

// VerifyToken accepts a raw token or an "Authorization: Bearer" header value.
func (s *AuthService) VerifyToken(_ context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
