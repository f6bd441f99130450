package model

import "time"

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageTemplate MessageType = "template"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageDocument MessageType = "document"
	MessageLocation MessageType = "location"
	// MessageOther covers inbound kinds we do not model (stickers, audio,
	// reactions). Recorded bodiless so the reply still reopens the window.
	MessageOther MessageType = "other"
)

type MessageStatus string

const (
	StatusReceived MessageStatus = "received"
	StatusSent     MessageStatus = "sent"
	StatusFailed   MessageStatus = "failed"
)

func (s MessageStatus) String() string {
	return string(s)
}

func (s MessageStatus) Valid() bool {
	return s == StatusReceived || s == StatusSent || s == StatusFailed
}

// Message is a conversation message row. Append-only: rows are never mutated
// after insert except to attach the provider response once a send resolves.
type Message struct {
	ID               string           `db:"id"`
	ConversationID   int64            `db:"conversation_id"`
	Direction        MessageDirection `db:"direction"`
	Type             MessageType      `db:"type"`
	Body             *string          `db:"body"`
	ExternalID       *string          `db:"external_id"`
	TemplateName     *string          `db:"template_name"`
	ProviderRequest  []byte           `db:"provider_request"`
	ProviderResponse []byte           `db:"provider_response"`
	Status           MessageStatus    `db:"status"`
	CreatedAt        time.Time        `db:"created_at"`
}
