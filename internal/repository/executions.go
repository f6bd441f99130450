package repository

import (
	"context"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// ExecutionsRepository persists the immutable one-row-per-run audit records.
type ExecutionsRepository interface {
	Insert(ctx context.Context, e model.CampaignExecution) error
	ListByTrigger(ctx context.Context, triggerID int64, limit int) ([]model.CampaignExecution, error)
}

type ExecutionsRepositoryImpl struct {
	db *sqlx.DB
}

func NewExecutionsRepository(db *sqlx.DB) *ExecutionsRepositoryImpl {
	return &ExecutionsRepositoryImpl{db: db}
}

var _ ExecutionsRepository = (*ExecutionsRepositoryImpl)(nil)

func (r *ExecutionsRepositoryImpl) Insert(ctx context.Context, e model.CampaignExecution) error {
	const q = `
		INSERT INTO campaign_executions
		    (id, campaign_id, trigger_id, total_recipients, sent_count, failed_count,
		     status, error_message, executed_at, completed_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.CampaignID, e.TriggerID, e.TotalRecipients, e.SentCount,
		e.FailedCount, e.Status, e.ErrorMessage, e.ExecutedAt, e.CompletedAt,
	)
	return err
}

func (r *ExecutionsRepositoryImpl) ListByTrigger(ctx context.Context, triggerID int64, limit int) ([]model.CampaignExecution, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var rows []model.CampaignExecution
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, campaign_id, trigger_id, total_recipients, sent_count, failed_count,
		       status, error_message, executed_at, completed_at
		  FROM campaign_executions
		 WHERE trigger_id = ?
		 ORDER BY executed_at DESC
		 LIMIT ?
	`, triggerID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
