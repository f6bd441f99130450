package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feastly/reminder-gateway/internal/logger"
	"github.com/feastly/reminder-gateway/internal/metrics"
	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/reminder"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/util"
	"github.com/feastly/reminder-gateway/internal/window"
)

// Processor applies inbound messages to conversation state: attribute the
// phone number, reopen the 24h window, persist the message, and flush any
// reminders that were waiting for the reply.
type Processor struct {
	tracker  *window.Tracker
	audience repository.AudienceRepository
	messages repository.MessagesRepository
	pending  *reminder.PendingStore
}

func NewProcessor(tracker *window.Tracker, audience repository.AudienceRepository, messages repository.MessagesRepository, pending *reminder.PendingStore) *Processor {
	return &Processor{
		tracker:  tracker,
		audience: audience,
		messages: messages,
		pending:  pending,
	}
}

// ProcessPayload handles one webhook delivery. Per-message failures are
// logged and counted but never fail the batch; the provider retries the whole
// delivery on a non-2xx response, which would duplicate the healthy messages.
func (p *Processor) ProcessPayload(ctx context.Context, raw []byte) (int, error) {
	msgs, err := ParsePayload(raw)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range msgs {
		if err := p.processOne(ctx, &msgs[i]); err != nil {
			logger.L().Warn("inbound message",
				zap.String("from", msgs[i].From),
				zap.String("external_id", msgs[i].ExternalID),
				zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

func (p *Processor) processOne(ctx context.Context, msg *InboundMessage) error {
	hint := window.ContactHint{
		ClientName: msg.ContactName,
		SourceType: model.SourceUnknown,
	}
	owner, err := p.audience.ResolveOwner(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}
	if owner != nil {
		hint.SourceType = owner.SourceType
		hint.CompanyID = &owner.CompanyID
		hint.BranchID = owner.BranchID
	}

	conv, err := p.tracker.ResolveOrOpen(ctx, msg.From, hint)
	if err != nil {
		return err
	}
	conv, err = p.tracker.RecordInbound(ctx, conv)
	if err != nil {
		return err
	}

	row := model.Message{
		ID:             util.New(),
		ConversationID: conv.ID,
		Direction:      model.DirectionInbound,
		Type:           msg.Type,
		Status:         model.StatusReceived,
	}
	if msg.Body != "" {
		body := msg.Body
		row.Body = &body
	}
	if msg.ExternalID != "" {
		id := msg.ExternalID
		row.ExternalID = &id
	}
	if err := p.messages.Insert(ctx, row); err != nil {
		return fmt.Errorf("record inbound message: %w", err)
	}
	metrics.MessagesTotal.WithLabelValues("inbound", "received").Inc()

	// the reply opened the window; deliver whatever was queued behind it
	if p.pending != nil {
		if _, err := p.pending.Flush(ctx, conv); err != nil {
			logger.L().Warn("flush pending after inbound",
				zap.Int64("conversation_id", conv.ID), zap.Error(err))
		}
	}
	return nil
}
