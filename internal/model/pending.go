package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type PendingStatus string

const (
	PendingWaitingResponse PendingStatus = "waiting_response"
	PendingSent            PendingStatus = "sent"
	PendingExpired         PendingStatus = "expired"
)

func (s PendingStatus) String() string { return string(s) }

// MenuIDList is an ordered, deduplicated menu id set stored as a JSON column.
type MenuIDList []int64

func (l MenuIDList) Value() (driver.Value, error) {
	if l == nil {
		l = MenuIDList{}
	}
	return json.Marshal(l)
}

func (l *MenuIDList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("menu id list: unsupported scan type %T", src)
	}
}

// Merge returns the union of l and ids, preserving first-seen order.
func (l MenuIDList) Merge(ids []int64) MenuIDList {
	seen := make(map[int64]struct{}, len(l)+len(ids))
	out := make(MenuIDList, 0, len(l)+len(ids))
	for _, id := range l {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// PendingNotification is reminder content queued behind a closed window.
// At most one waiting_response row exists per (trigger_id, conversation_id);
// later eligible menus merge into its menu set, keeping the first-rendered
// content.
type PendingNotification struct {
	ID             string        `db:"id"`
	TriggerID      int64         `db:"trigger_id"`
	ConversationID int64         `db:"conversation_id"`
	PhoneNumber    string        `db:"phone_number"`
	MessageContent string        `db:"message_content"`
	MenuIDs        MenuIDList    `db:"menu_ids"`
	Status         PendingStatus `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}
