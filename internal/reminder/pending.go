package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feastly/reminder-gateway/internal/logger"
	"github.com/feastly/reminder-gateway/internal/metrics"
	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/util"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
	"github.com/feastly/reminder-gateway/internal/window"
)

// PendingStore queues reminders for recipients whose window is closed with a
// template already outstanding, and flushes them as free text once the
// recipient replies.
type PendingStore struct {
	pending       repository.PendingRepository
	notified      repository.NotifiedRepository
	conversations repository.ConversationsRepository
	messages      repository.MessagesRepository
	sender        whatsapp.Sender
	tracker       *window.Tracker
	ttl           time.Duration
	now           func() time.Time
}

func NewPendingStore(
	pending repository.PendingRepository,
	notified repository.NotifiedRepository,
	conversations repository.ConversationsRepository,
	messages repository.MessagesRepository,
	sender whatsapp.Sender,
	tracker *window.Tracker,
	ttlHours int,
) *PendingStore {
	if ttlHours <= 0 {
		ttlHours = 48
	}
	return &PendingStore{
		pending:       pending,
		notified:      notified,
		conversations: conversations,
		messages:      messages,
		sender:        sender,
		tracker:       tracker,
		ttl:           time.Duration(ttlHours) * time.Hour,
		now:           time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *PendingStore) WithClock(now func() time.Time) *PendingStore {
	s.now = now
	return s
}

// Enqueue merges menuIDs into the conversation's waiting batch for the
// trigger, creating it when absent, and records the ledger rows as pending.
func (s *PendingStore) Enqueue(ctx context.Context, triggerID int64, conv *model.Conversation, content string, menuIDs []int64) (*model.PendingNotification, bool, error) {
	p, created, err := s.pending.Enqueue(ctx, triggerID, conv.ID, conv.PhoneNumber, content, menuIDs)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue pending: %w", err)
	}
	if err := s.notified.RecordPending(ctx, triggerID, menuIDs, conv.PhoneNumber, conv.ID); err != nil {
		return nil, false, fmt.Errorf("record pending ledger: %w", err)
	}
	return p, created, nil
}

// Flush delivers every waiting batch of one conversation as free text. Call
// it right after an inbound message opened the window. Send failures leave
// the row waiting for the next attempt. Returns the number delivered.
func (s *PendingStore) Flush(ctx context.Context, conv *model.Conversation) (int, error) {
	rows, err := s.pending.ListWaitingByConversation(ctx, conv.ID)
	if err != nil {
		return 0, fmt.Errorf("list waiting: %w", err)
	}

	delivered := 0
	for i := range rows {
		ok, err := s.deliver(ctx, &rows[i], conv)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// SweepStats summarizes one sweep pass over all waiting batches.
type SweepStats struct {
	Sent      int
	Expired   int
	Unchanged int
}

// Sweep walks every waiting batch: batches whose conversation regained an
// open window are delivered (safety net for a missed inbound flush), batches
// older than the TTL expire, the rest stay untouched.
func (s *PendingStore) Sweep(ctx context.Context) (SweepStats, error) {
	rows, err := s.pending.ListWaiting(ctx)
	if err != nil {
		return SweepStats{}, fmt.Errorf("list waiting: %w", err)
	}

	var stats SweepStats
	for i := range rows {
		row := &rows[i]
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		conv, err := s.conversations.GetByID(ctx, row.ConversationID)
		if err != nil {
			logger.L().Warn("sweep: load conversation",
				zap.String("pending_id", row.ID), zap.Error(err))
			stats.Unchanged++
			continue
		}

		switch {
		case conv != nil && s.tracker.Status(conv) == model.WindowActive:
			ok, err := s.deliver(ctx, row, conv)
			if err != nil || !ok {
				if err != nil {
					logger.L().Warn("sweep: deliver",
						zap.String("pending_id", row.ID), zap.Error(err))
				}
				stats.Unchanged++
				metrics.PendingSweptTotal.WithLabelValues("unchanged").Inc()
				continue
			}
			stats.Sent++
			metrics.PendingSweptTotal.WithLabelValues("sent").Inc()

		case s.now().Sub(row.CreatedAt) > s.ttl:
			if err := s.expire(ctx, row); err != nil {
				logger.L().Warn("sweep: expire",
					zap.String("pending_id", row.ID), zap.Error(err))
				stats.Unchanged++
				continue
			}
			stats.Expired++
			metrics.PendingSweptTotal.WithLabelValues("expired").Inc()

		default:
			stats.Unchanged++
			metrics.PendingSweptTotal.WithLabelValues("unchanged").Inc()
		}
	}
	return stats, nil
}

// deliver sends one waiting batch as free text and settles its row and
// ledger. ok=false means another worker already took the row or the provider
// rejected the send.
func (s *PendingStore) deliver(ctx context.Context, row *model.PendingNotification, conv *model.Conversation) (bool, error) {
	res, sendErr := s.sender.SendText(ctx, row.PhoneNumber, row.MessageContent)

	body := row.MessageContent
	msg := model.Message{
		ID:               util.New(),
		ConversationID:   conv.ID,
		Direction:        model.DirectionOutbound,
		Type:             model.MessageText,
		Body:             &body,
		ProviderRequest:  res.RawRequest,
		ProviderResponse: res.RawResponse,
		Status:           model.StatusSent,
	}
	if res.ExternalID != "" {
		id := res.ExternalID
		msg.ExternalID = &id
	}

	if sendErr != nil || !res.Success {
		msg.Status = model.StatusFailed
		if err := s.messages.Insert(ctx, msg); err != nil {
			logger.L().Warn("pending: record failed message", zap.Error(err))
		}
		metrics.MessagesTotal.WithLabelValues("outbound", "failed").Inc()
		if sendErr != nil {
			logger.L().Warn("pending: send text",
				zap.String("pending_id", row.ID), zap.Error(sendErr))
		}
		return false, nil
	}

	taken, err := s.pending.MarkSent(ctx, row.ID)
	if err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	if !taken {
		// a concurrent flush beat us to the row after the send; the extra
		// message is already delivered, nothing left to settle
		return false, nil
	}

	if err := s.messages.Insert(ctx, msg); err != nil {
		logger.L().Warn("pending: record message", zap.Error(err))
	}
	if err := s.notified.MarkSentWhilePending(ctx, row.TriggerID, row.MenuIDs, row.PhoneNumber, s.now()); err != nil {
		logger.L().Warn("pending: settle ledger", zap.Error(err))
	}
	metrics.MessagesTotal.WithLabelValues("outbound", "sent").Inc()
	return true, nil
}

func (s *PendingStore) expire(ctx context.Context, row *model.PendingNotification) error {
	taken, err := s.pending.MarkExpired(ctx, row.ID)
	if err != nil {
		return fmt.Errorf("mark expired: %w", err)
	}
	if !taken {
		return nil
	}
	if err := s.notified.MarkFailedWhilePending(ctx, row.TriggerID, row.MenuIDs, row.PhoneNumber); err != nil {
		return fmt.Errorf("fail ledger: %w", err)
	}
	return nil
}
