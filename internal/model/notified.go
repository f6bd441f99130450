package model

import "time"

type NotifiedStatus string

const (
	NotifiedPending NotifiedStatus = "pending"
	NotifiedSent    NotifiedStatus = "sent"
	NotifiedFailed  NotifiedStatus = "failed"
)

func (s NotifiedStatus) String() string { return string(s) }

// NotifiedMenu is the per-menu delivery ledger row keyed by
// (trigger_id, menu_id, phone_number). Its unique key is the true at-most-once
// dedup guard for overlapping trigger runs; status only ever moves
// pending→sent or pending→failed, never back.
type NotifiedMenu struct {
	ID             int64          `db:"id"`
	TriggerID      int64          `db:"trigger_id"`
	MenuID         int64          `db:"menu_id"`
	PhoneNumber    string         `db:"phone_number"`
	ConversationID *int64         `db:"conversation_id"`
	Status         NotifiedStatus `db:"status"`
	NotifiedAt     *time.Time     `db:"notified_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}
