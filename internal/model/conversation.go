package model

import "time"

type ConversationStatus string

const (
	ConversationNew           ConversationStatus = "new"
	ConversationAwaitingReply ConversationStatus = "awaiting_reply"
	ConversationReceived      ConversationStatus = "received"
	ConversationClosed        ConversationStatus = "closed"
)

func (s ConversationStatus) String() string { return string(s) }

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationNew, ConversationAwaitingReply, ConversationReceived, ConversationClosed:
		return true
	}
	return false
}

// WindowStatus is the derived 24h-window state a sender consults before
// choosing between free-form text and an approved template.
type WindowStatus string

const (
	WindowActive           WindowStatus = "active"
	WindowAwaitingResponse WindowStatus = "awaiting_response"
	WindowExpired          WindowStatus = "expired"
)

func (s WindowStatus) String() string { return string(s) }

type SourceType string

const (
	SourceCompany SourceType = "company"
	SourceBranch  SourceType = "branch"
	SourceUnknown SourceType = "unknown"
)

// Conversation is the per-phone-number window record. At most one non-closed
// row exists per phone number; window_expires_at is last inbound + window
// duration, NULL until the first inbound message arrives.
type Conversation struct {
	ID              int64              `db:"id"`
	PhoneNumber     string             `db:"phone_number"`
	ClientName      *string            `db:"client_name"`
	SourceType      SourceType         `db:"source_type"`
	CompanyID       *int64             `db:"company_id"`
	BranchID        *int64             `db:"branch_id"`
	Status          ConversationStatus `db:"status"`
	LastMessageAt   *time.Time         `db:"last_message_at"`
	WindowExpiresAt *time.Time         `db:"window_expires_at"`
	CreatedAt       time.Time          `db:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at"`
}
