package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GetBalance returns 0 for users that never received credits.
func (r *CreditRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	return balanceOf(ctx, r.db, userID)
}

// AddCredits records transactionID (when set) and increments the balance in one
// transaction. A transaction id seen before leaves the balance untouched and
// reports applied=false.
func (r *CreditRepository) AddCredits(ctx context.Context, userID string, amount int, transactionID string) (int, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if transactionID != "" {
		const insertTx = `INSERT INTO transactions (transaction_id, user_id, credits_added) VALUES (?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insertTx, transactionID, userID, amount); err != nil {
			if !isDuplicateKey(err) {
				return 0, false, fmt.Errorf("insert transaction: %w", err)
			}
			_ = tx.Rollback()
			balance, err := r.GetBalance(ctx, userID)
			if err != nil {
				return 0, false, err
			}
			return balance, false, nil
		}
	}

	const upsert = `
INSERT INTO credits (user_id, balance) VALUES (?, ?)
ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance), updated_at = NOW()`
	if _, err := tx.ExecContext(ctx, upsert, userID, amount); err != nil {
		return 0, false, fmt.Errorf("upsert credits: %w", err)
	}

	balance, err := balanceOf(ctx, tx, userID)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit credit: %w", err)
	}
	return balance, true, nil
}

// DebitOne removes a single credit only when the balance covers it. ok=false
// means the balance was below one and nothing changed.
func (r *CreditRepository) DebitOne(ctx context.Context, userID string) (int, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const query = `
UPDATE credits SET balance = balance - 1, updated_at = NOW()
WHERE user_id = ? AND balance >= 1`
	res, err := tx.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, false, fmt.Errorf("debit credit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}

	balance, err := balanceOf(ctx, tx, userID)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit debit: %w", err)
	}
	return balance, true, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func balanceOf(ctx context.Context, q queryer, userID string) (int, error) {
	const query = `SELECT balance FROM credits WHERE user_id = ?`
	var balance int
	if err := q.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("scan balance: %w", err)
	}
	return balance, nil
}
