package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digkill/themeshot/internal/metrics"
	"github.com/digkill/themeshot/internal/models"
)

const (
	defaultThemeName = "Unknown"
	maxThemeNameLen  = 255
)

type CreditResult struct {
	Balance int
	Applied bool
}

// Ledger owns every change to a user's credit balance.
type Ledger struct {
	credits CreditStore
	usage   UsageStore
	log     *slog.Logger
	metrics *metrics.Collector
}

func NewLedger(credits CreditStore, usage UsageStore, log *slog.Logger, m *metrics.Collector) *Ledger {
	return &Ledger{credits: credits, usage: usage, log: log, metrics: m}
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (int, error) {
	balance, err := l.credits.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Credit adds amount to the balance. A transactionID that was already applied
// leaves the balance as is and returns Applied=false.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int, transactionID string) (CreditResult, error) {
	if amount <= 0 {
		l.metrics.LedgerOperation("credit", "invalid")
		return CreditResult{}, ErrInvalidAmount
	}
	transactionID = strings.TrimSpace(transactionID)

	balance, applied, err := l.credits.AddCredits(ctx, userID, amount, transactionID)
	if err != nil {
		l.metrics.LedgerOperation("credit", "error")
		return CreditResult{}, fmt.Errorf("add credits: %w", err)
	}
	if !applied {
		l.metrics.LedgerOperation("credit", "duplicate")
		if l.log != nil {
			l.log.Info("credit transaction already processed", "user_id", userID, "transaction_id", transactionID)
		}
		return CreditResult{Balance: balance, Applied: false}, nil
	}

	l.metrics.LedgerOperation("credit", "applied")
	if l.log != nil {
		l.log.Info("credits added", "user_id", userID, "amount", amount, "transaction_id", transactionID, "balance", balance)
	}
	return CreditResult{Balance: balance, Applied: true}, nil
}

// DebitOne removes one credit and returns the new balance. It never drives the
// balance below zero: an empty balance yields ErrInsufficientCredit.
func (l *Ledger) DebitOne(ctx context.Context, userID string) (int, error) {
	balance, ok, err := l.credits.DebitOne(ctx, userID)
	if err != nil {
		l.metrics.LedgerOperation("debit", "error")
		return 0, fmt.Errorf("debit credit: %w", err)
	}
	if !ok {
		l.metrics.LedgerOperation("debit", "insufficient")
		return 0, ErrInsufficientCredit
	}
	l.metrics.LedgerOperation("debit", "applied")
	return balance, nil
}

// LogUsage appends an audit entry. Failures are logged, never returned.
func (l *Ledger) LogUsage(ctx context.Context, userID string, creditsUsed int, themeName string, pipeline models.PipelineName) {
	themeName = strings.TrimSpace(themeName)
	if themeName == "" {
		themeName = defaultThemeName
	}
	// usage_logs.theme_name is VARCHAR(255).
	if r := []rune(themeName); len(r) > maxThemeNameLen {
		themeName = string(r[:maxThemeNameLen])
	}
	entry := &models.UsageLog{
		UserID:      userID,
		CreditsUsed: creditsUsed,
		ThemeName:   themeName,
		Pipeline:    pipeline,
	}
	if err := l.usage.LogUsage(ctx, entry); err != nil && l.log != nil {
		l.log.Error("failed to log usage", "user_id", userID, "err", err)
	}
}

func isInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientCredit)
}
