package repository

import (
	"context"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// MessagesRepository defines persistence for the messages table. Rows are
// append-only; AttachProviderResponse is the only post-insert mutation.
type MessagesRepository interface {
	Insert(ctx context.Context, m model.Message) error
	HasInbound(ctx context.Context, conversationID int64) (bool, error)
	AttachProviderResponse(ctx context.Context, id string, status model.MessageStatus, externalID *string, response []byte) error
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

func (r *MessagesRepositoryImpl) Insert(ctx context.Context, m model.Message) error {
	const q = `
		INSERT INTO messages
		    (id, conversation_id, direction, type, body, external_id, template_name,
		     provider_request, provider_response, status, created_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
	`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.ConversationID, m.Direction, m.Type, m.Body, m.ExternalID,
		m.TemplateName, m.ProviderRequest, m.ProviderResponse, m.Status,
	)
	return err
}

func (r *MessagesRepositoryImpl) HasInbound(ctx context.Context, conversationID int64) (bool, error) {
	var one int
	err := r.db.QueryRowxContext(ctx, `
		SELECT 1 FROM messages
		 WHERE conversation_id = ? AND direction = 'inbound'
		 LIMIT 1
	`, conversationID).Scan(&one)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *MessagesRepositoryImpl) AttachProviderResponse(ctx context.Context, id string, status model.MessageStatus, externalID *string, response []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		   SET status = ?, external_id = COALESCE(?, external_id), provider_response = ?
		 WHERE id = ?
	`, status, externalID, response, id)
	return err
}
