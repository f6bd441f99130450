package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

// PendingRepository persists queued reminder batches. The merge on enqueue is
// a per-row atomic read-modify-write: concurrent enqueues for the same
// (trigger, conversation) must not lose a menu id.
type PendingRepository interface {
	// Enqueue merges menuIDs into the existing waiting_response row for
	// (triggerID, conversationID), or inserts a new one. The first-rendered
	// content is kept on merge. Reports whether a new row was created.
	Enqueue(ctx context.Context, triggerID, conversationID int64, phone, content string, menuIDs []int64) (*model.PendingNotification, bool, error)
	ListWaitingByConversation(ctx context.Context, conversationID int64) ([]model.PendingNotification, error)
	ListWaiting(ctx context.Context) ([]model.PendingNotification, error)
	// MarkSent flips a waiting_response row to sent; a no-op when the row
	// already left waiting_response.
	MarkSent(ctx context.Context, id string) (bool, error)
	// MarkExpired is terminal: an expired row is never resumed.
	MarkExpired(ctx context.Context, id string) (bool, error)
}

type PendingRepositoryImpl struct {
	db *sqlx.DB
}

func NewPendingRepository(db *sqlx.DB) *PendingRepositoryImpl {
	return &PendingRepositoryImpl{db: db}
}

var _ PendingRepository = (*PendingRepositoryImpl)(nil)

const pendingColumns = `
	id, trigger_id, conversation_id, phone_number, message_content,
	menu_ids, status, created_at, updated_at
`

func (r *PendingRepositoryImpl) Enqueue(ctx context.Context, triggerID, conversationID int64, phone, content string, menuIDs []int64) (*model.PendingNotification, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing model.PendingNotification
	err = tx.GetContext(ctx, &existing, `
		SELECT `+pendingColumns+`
		  FROM reminder_pending_notifications
		 WHERE trigger_id = ? AND conversation_id = ? AND status = 'waiting_response'
		 LIMIT 1
		 FOR UPDATE
	`, triggerID, conversationID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		p := model.PendingNotification{
			ID:             util.New(),
			TriggerID:      triggerID,
			ConversationID: conversationID,
			PhoneNumber:    phone,
			MessageContent: content,
			MenuIDs:        model.MenuIDList(nil).Merge(menuIDs),
			Status:         model.PendingWaitingResponse,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reminder_pending_notifications
			    (id, trigger_id, conversation_id, phone_number, message_content, menu_ids, status, created_at, updated_at)
			VALUES
			    (?, ?, ?, ?, ?, ?, 'waiting_response', NOW(), NOW())
		`, p.ID, p.TriggerID, p.ConversationID, p.PhoneNumber, p.MessageContent, p.MenuIDs)
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		return &p, true, nil

	case err != nil:
		return nil, false, err
	}

	existing.MenuIDs = existing.MenuIDs.Merge(menuIDs)
	_, err = tx.ExecContext(ctx, `
		UPDATE reminder_pending_notifications
		   SET menu_ids = ?, updated_at = NOW()
		 WHERE id = ?
	`, existing.MenuIDs, existing.ID)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *PendingRepositoryImpl) ListWaitingByConversation(ctx context.Context, conversationID int64) ([]model.PendingNotification, error) {
	var rows []model.PendingNotification
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+pendingColumns+`
		  FROM reminder_pending_notifications
		 WHERE conversation_id = ? AND status = 'waiting_response'
		 ORDER BY created_at
	`, conversationID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PendingRepositoryImpl) ListWaiting(ctx context.Context) ([]model.PendingNotification, error) {
	var rows []model.PendingNotification
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+pendingColumns+`
		  FROM reminder_pending_notifications
		 WHERE status = 'waiting_response'
		 ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PendingRepositoryImpl) MarkSent(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminder_pending_notifications
		   SET status = 'sent', updated_at = NOW()
		 WHERE id = ? AND status = 'waiting_response'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PendingRepositoryImpl) MarkExpired(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminder_pending_notifications
		   SET status = 'expired', updated_at = NOW()
		 WHERE id = ? AND status = 'waiting_response'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
