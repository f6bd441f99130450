package repository

import (
	"context"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// MessageReport is the flattened reporting row replicated into ClickHouse.
type MessageReport struct {
	ID             string    `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	PhoneNumber    string    `db:"phone_number" json:"phone_number"`
	Direction      string    `db:"direction" json:"direction"`
	Type           string    `db:"type" json:"type"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MessageReportFilter narrows a report listing. Zero-value fields are not
// applied.
type MessageReportFilter struct {
	Phone     string
	Status    model.MessageStatus
	Direction model.MessageDirection
}

// CHMessagesRepository lists conversation messages from ClickHouse (reporting lane).
type CHMessagesRepository interface {
	List(ctx context.Context, f MessageReportFilter, limit, offset int) ([]MessageReport, error)
}

type chMessagesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHMessagesRepository(ch *sqlx.DB) CHMessagesRepository {
	return &chMessagesRepository{ch: ch}
}

func (r *chMessagesRepository) List(ctx context.Context, f MessageReportFilter, limit, offset int) ([]MessageReport, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, conversation_id, phone_number, direction, type, status, created_at
		FROM rmgw.messages_latest
		WHERE 1 = 1
	`
	var args []any

	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status.String())
	}
	if f.Direction != "" {
		q += " AND direction = ?"
		args = append(args, string(f.Direction))
	}
	if f.Phone != "" {
		q += " AND phone_number = ?"
		args = append(args, f.Phone)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []MessageReport
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
