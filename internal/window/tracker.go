// Package window owns the per-phone-number 24h conversation window state.
// No other component writes window_expires_at.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/repository"
)

// ContactHint carries what the caller knows about the phone number's owner
// when a conversation has to be opened.
type ContactHint struct {
	ClientName string
	SourceType model.SourceType
	CompanyID  *int64
	BranchID   *int64
}

// Tracker transitions conversations along
// new -(inbound)-> received -(template while closed)-> awaiting_reply
// -(inbound)-> received, with closed reachable only by operator action.
type Tracker struct {
	conversations repository.ConversationsRepository
	messages      repository.MessagesRepository
	window        time.Duration
	now           func() time.Time
}

func NewTracker(conversations repository.ConversationsRepository, messages repository.MessagesRepository, windowHours int) *Tracker {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &Tracker{
		conversations: conversations,
		messages:      messages,
		window:        time.Duration(windowHours) * time.Hour,
		now:           time.Now,
	}
}

// WithClock overrides the tracker's clock. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// ResolveOrOpen finds the unique non-closed conversation for phone, creating
// one in state new (no window) when absent. A closed conversation never
// matches; a fresh row is opened for the same number.
func (t *Tracker) ResolveOrOpen(ctx context.Context, phone string, hint ContactHint) (*model.Conversation, error) {
	conv, err := t.conversations.FindActiveByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv != nil {
		if hint.ClientName != "" && conv.ClientName == nil {
			// first-touch attribution; losing the race is fine
			if _, err := t.conversations.SetClientNameIfEmpty(ctx, conv.ID, hint.ClientName); err != nil {
				return nil, fmt.Errorf("set client name: %w", err)
			}
		}
		return conv, nil
	}

	sourceType := hint.SourceType
	if sourceType == "" {
		sourceType = model.SourceUnknown
	}
	conv = &model.Conversation{
		PhoneNumber: phone,
		SourceType:  sourceType,
		CompanyID:   hint.CompanyID,
		BranchID:    hint.BranchID,
		Status:      model.ConversationNew,
	}
	if hint.ClientName != "" {
		name := hint.ClientName
		conv.ClientName = &name
	}
	if err := t.conversations.Insert(ctx, conv); err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	return conv, nil
}

// Peek looks up the active conversation without side effects (preview mode
// for operator-initiated chats).
func (t *Tracker) Peek(ctx context.Context, phone string) (*model.Conversation, error) {
	return t.conversations.FindActiveByPhone(ctx, phone)
}

// RecordInbound is the only operation that extends the window: status becomes
// received and window_expires_at moves to now + window duration.
func (t *Tracker) RecordInbound(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	now := t.now()
	expires := now.Add(t.window)
	if err := t.conversations.OpenWindow(ctx, conv.ID, now, expires); err != nil {
		return nil, fmt.Errorf("open window: %w", err)
	}
	updated := *conv
	updated.Status = model.ConversationReceived
	updated.LastMessageAt = &now
	updated.WindowExpiresAt = &expires
	return &updated, nil
}

// RecordOutbound notes an outbound message. A template sent while the window
// is closed puts the conversation into awaiting_reply; ordinary text inside
// an open window leaves the status untouched.
func (t *Tracker) RecordOutbound(ctx context.Context, conv *model.Conversation, msgType model.MessageType) error {
	if msgType != model.MessageTemplate {
		return nil
	}
	if t.Status(conv) == model.WindowActive {
		return nil
	}
	if err := t.conversations.MarkAwaitingReply(ctx, conv.ID); err != nil {
		return fmt.Errorf("mark awaiting reply: %w", err)
	}
	conv.Status = model.ConversationAwaitingReply
	return nil
}

// Status derives the window state: active while window_expires_at lies in the
// future, awaiting_response while a template is outstanding (regardless of
// expiry), expired otherwise. A conversation that never received an inbound
// message counts as expired.
func (t *Tracker) Status(conv *model.Conversation) model.WindowStatus {
	if conv.Status == model.ConversationAwaitingReply {
		return model.WindowAwaitingResponse
	}
	if conv.WindowExpiresAt != nil && t.now().Before(*conv.WindowExpiresAt) {
		return model.WindowActive
	}
	return model.WindowExpired
}

// ExpiresAt returns the window deadline, or nil once it has passed.
func (t *Tracker) ExpiresAt(conv *model.Conversation) *time.Time {
	if conv.WindowExpiresAt == nil || !t.now().Before(*conv.WindowExpiresAt) {
		return nil
	}
	return conv.WindowExpiresAt
}

// Close is terminal and operator-only; time alone never closes a conversation.
func (t *Tracker) Close(ctx context.Context, conversationID int64) error {
	return t.conversations.Close(ctx, conversationID)
}
