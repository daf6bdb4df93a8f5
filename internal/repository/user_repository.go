package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/themeshot/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a user and reports ErrDuplicateEmail when the address is taken.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	const query = `INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`
	row := r.db.QueryRowContext(ctx, query, email)
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	const query = `
SELECT u.id, u.email, COALESCE(c.balance, 0)
FROM users u LEFT JOIN credits c ON c.user_id = u.id
ORDER BY u.created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.Balance); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
