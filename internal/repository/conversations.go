package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// ConversationsRepository owns the conversations table. Window fields are
// written only through the window tracker's operations below.
type ConversationsRepository interface {
	// FindActiveByPhone returns the unique non-closed conversation for the
	// phone number, or nil when none exists.
	FindActiveByPhone(ctx context.Context, phone string) (*model.Conversation, error)
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	Insert(ctx context.Context, c *model.Conversation) error
	// OpenWindow records an inbound message: status=received, advances
	// last_message_at and window_expires_at. The sole window extension path.
	OpenWindow(ctx context.Context, id int64, at, expiresAt time.Time) error
	MarkAwaitingReply(ctx context.Context, id int64) error
	// SetClientNameIfEmpty is a first-touch conditional update: it writes the
	// name only when client_name is still NULL and reports whether this
	// caller won.
	SetClientNameIfEmpty(ctx context.Context, id int64, name string) (bool, error)
	Close(ctx context.Context, id int64) error
}

type ConversationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewConversationsRepository(db *sqlx.DB) *ConversationsRepositoryImpl {
	return &ConversationsRepositoryImpl{db: db}
}

var _ ConversationsRepository = (*ConversationsRepositoryImpl)(nil)

const conversationColumns = `
	id, phone_number, client_name, source_type, company_id, branch_id,
	status, last_message_at, window_expires_at, created_at, updated_at
`

func (r *ConversationsRepositoryImpl) FindActiveByPhone(ctx context.Context, phone string) (*model.Conversation, error) {
	var c model.Conversation
	err := r.db.GetContext(ctx, &c, `
		SELECT `+conversationColumns+`
		  FROM conversations
		 WHERE phone_number = ? AND status != 'closed'
		 ORDER BY id DESC
		 LIMIT 1
	`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationsRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	var c model.Conversation
	err := r.db.GetContext(ctx, &c, `
		SELECT `+conversationColumns+`
		  FROM conversations
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConversationsRepositoryImpl) Insert(ctx context.Context, c *model.Conversation) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations
		    (phone_number, client_name, source_type, company_id, branch_id, status, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, NOW(), NOW())
	`, c.PhoneNumber, c.ClientName, c.SourceType, c.CompanyID, c.BranchID, c.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *ConversationsRepositoryImpl) OpenWindow(ctx context.Context, id int64, at, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		   SET status = 'received',
		       last_message_at = ?,
		       window_expires_at = ?,
		       updated_at = NOW()
		 WHERE id = ? AND status != 'closed'
	`, at, expiresAt, id)
	return err
}

func (r *ConversationsRepositoryImpl) MarkAwaitingReply(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		   SET status = 'awaiting_reply', updated_at = NOW()
		 WHERE id = ? AND status != 'closed'
	`, id)
	return err
}

func (r *ConversationsRepositoryImpl) SetClientNameIfEmpty(ctx context.Context, id int64, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		   SET client_name = ?, updated_at = NOW()
		 WHERE id = ? AND client_name IS NULL
	`, name, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ConversationsRepositoryImpl) Close(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		   SET status = 'closed', updated_at = NOW()
		 WHERE id = ?
	`, id)
	return err
}
