package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/digkill/themeshot/internal/models"
)

type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) LogUsage(ctx context.Context, entry *models.UsageLog) error {
	const query = `
INSERT INTO usage_logs (user_id, credits_used, theme_name, pipeline)
VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, entry.UserID, entry.CreditsUsed, entry.ThemeName, string(entry.Pipeline))
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("usage last insert id: %w", err)
	}
	entry.ID = id
	return nil
}
