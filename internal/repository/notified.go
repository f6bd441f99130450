package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// NotifiedRepository is the per-menu delivery ledger. The unique key
// (trigger_id, menu_id, phone_number) makes the upserts idempotent under
// overlapping runs; the guarded ON DUPLICATE KEY expressions enforce the
// one-way status transitions (sent is sticky, failed only replaces pending).
type NotifiedRepository interface {
	SentMenuIDs(ctx context.Context, triggerID int64, phone string) ([]int64, error)
	RecordPending(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64) error
	RecordSent(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64, at time.Time) error
	RecordFailed(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64) error
	// MarkSentWhilePending / MarkFailedWhilePending resolve a pending batch's
	// ledger rows without touching rows a concurrent run already settled.
	MarkSentWhilePending(ctx context.Context, triggerID int64, menuIDs []int64, phone string, at time.Time) error
	MarkFailedWhilePending(ctx context.Context, triggerID int64, menuIDs []int64, phone string) error
}

type NotifiedRepositoryImpl struct {
	db *sqlx.DB
}

func NewNotifiedRepository(db *sqlx.DB) *NotifiedRepositoryImpl {
	return &NotifiedRepositoryImpl{db: db}
}

var _ NotifiedRepository = (*NotifiedRepositoryImpl)(nil)

func (r *NotifiedRepositoryImpl) SentMenuIDs(ctx context.Context, triggerID int64, phone string) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT menu_id
		  FROM reminder_notified_menus
		 WHERE trigger_id = ? AND phone_number = ? AND status = 'sent'
	`, triggerID, phone)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *NotifiedRepositoryImpl) RecordPending(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64) error {
	// keep whatever status an earlier run already reached
	return r.insertBatch(ctx, triggerID, menuIDs, phone, conversationID, model.NotifiedPending, nil,
		"status = status")
}

func (r *NotifiedRepositoryImpl) RecordSent(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64, at time.Time) error {
	return r.insertBatch(ctx, triggerID, menuIDs, phone, conversationID, model.NotifiedSent, &at,
		"status = 'sent', notified_at = COALESCE(notified_at, VALUES(notified_at)), updated_at = NOW()")
}

func (r *NotifiedRepositoryImpl) RecordFailed(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64) error {
	// never demote a sent row
	return r.insertBatch(ctx, triggerID, menuIDs, phone, conversationID, model.NotifiedFailed, nil,
		"status = IF(status = 'sent', status, 'failed'), updated_at = NOW()")
}

func (r *NotifiedRepositoryImpl) insertBatch(ctx context.Context, triggerID int64, menuIDs []int64, phone string, conversationID int64, status model.NotifiedStatus, notifiedAt *time.Time, onDup string) error {
	if len(menuIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(menuIDs)*6)

	sb.WriteString(`INSERT INTO reminder_notified_menus (trigger_id, menu_id, phone_number, conversation_id, status, notified_at, created_at, updated_at) VALUES `)
	for i, menuID := range menuIDs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, NOW(), NOW())")
		args = append(args, triggerID, menuID, phone, conversationID, status, notifiedAt)
	}
	sb.WriteString(fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s", onDup))

	_, err := r.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *NotifiedRepositoryImpl) MarkSentWhilePending(ctx context.Context, triggerID int64, menuIDs []int64, phone string, at time.Time) error {
	return r.updateWhilePending(ctx, triggerID, menuIDs, phone,
		`status = 'sent', notified_at = ?`, at)
}

func (r *NotifiedRepositoryImpl) MarkFailedWhilePending(ctx context.Context, triggerID int64, menuIDs []int64, phone string) error {
	return r.updateWhilePending(ctx, triggerID, menuIDs, phone, `status = 'failed'`)
}

func (r *NotifiedRepositoryImpl) updateWhilePending(ctx context.Context, triggerID int64, menuIDs []int64, phone, set string, setArgs ...any) error {
	if len(menuIDs) == 0 {
		return nil
	}
	base := fmt.Sprintf(`
		UPDATE reminder_notified_menus
		   SET %s, updated_at = NOW()
		 WHERE trigger_id = ? AND phone_number = ? AND status = 'pending' AND menu_id IN (?)
	`, set)
	args := append(setArgs, triggerID, phone, menuIDs)
	query, inArgs, err := sqlx.In(base, args...)
	if err != nil {
		return err
	}
	query = r.db.Rebind(query)
	_, err = r.db.ExecContext(ctx, query, inArgs...)
	return err
}
