package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feastly/reminder-gateway/internal/kafka"
	"github.com/feastly/reminder-gateway/internal/logger"
	"github.com/feastly/reminder-gateway/internal/metrics"
	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/util"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
	"github.com/feastly/reminder-gateway/internal/window"
)

var (
	ErrTriggerNotFound  = errors.New("trigger not found")
	ErrTriggerInactive  = errors.New("trigger is not active")
	ErrCampaignInactive = errors.New("campaign is not active")
	ErrRunInProgress    = errors.New("trigger run already in progress")
)

// Per-recipient outcomes of one run.
const (
	outcomeSent    = "sent"
	outcomePending = "pending"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// EventPublisher emits audit events. Satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, key, eventType string, payload map[string]any)
}

// Executor runs one trigger end to end: eligibility, audience walk,
// window-aware delivery, ledger and execution bookkeeping.
type Executor struct {
	campaigns  repository.CampaignsRepository
	audience   repository.AudienceRepository
	notified   repository.NotifiedRepository
	executions repository.ExecutionsRepository
	messages   repository.MessagesRepository
	tracker    *window.Tracker
	pending    *PendingStore
	sender     whatsapp.Sender
	strategies StrategyDeps
	locker     RunLocker      // nil disables cross-process serialization
	events     EventPublisher // nil disables audit events
	now        func() time.Time
}

func NewExecutor(
	campaigns repository.CampaignsRepository,
	audience repository.AudienceRepository,
	notified repository.NotifiedRepository,
	executions repository.ExecutionsRepository,
	messages repository.MessagesRepository,
	tracker *window.Tracker,
	pending *PendingStore,
	sender whatsapp.Sender,
	strategies StrategyDeps,
	locker RunLocker,
	events *kafka.Producer,
) *Executor {
	e := &Executor{
		campaigns:  campaigns,
		audience:   audience,
		notified:   notified,
		executions: executions,
		messages:   messages,
		tracker:    tracker,
		pending:    pending,
		sender:     sender,
		strategies: strategies,
		locker:     locker,
		now:        time.Now,
	}
	if events != nil {
		e.events = events
	}
	return e
}

// WithClock overrides the executor's clock. Test hook.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Run executes one trigger and records exactly one execution row. Concurrent
// runs of the same trigger are rejected with ErrRunInProgress.
func (e *Executor) Run(ctx context.Context, triggerID int64) (*model.CampaignExecution, error) {
	trigger, err := e.campaigns.GetTrigger(ctx, triggerID)
	if err != nil {
		return nil, fmt.Errorf("load trigger: %w", err)
	}
	if trigger == nil {
		return nil, ErrTriggerNotFound
	}
	if !trigger.IsActive {
		return nil, ErrTriggerInactive
	}

	campaign, err := e.campaigns.GetCampaign(ctx, trigger.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if campaign == nil || campaign.Status != model.CampaignActive {
		return nil, ErrCampaignInactive
	}

	if e.locker != nil {
		release, ok, err := e.locker.Acquire(ctx, trigger.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer release()
	}

	return e.run(ctx, trigger, campaign)
}

func (e *Executor) run(ctx context.Context, trigger *model.Trigger, campaign *model.Campaign) (*model.CampaignExecution, error) {
	startedAt := e.now()
	log := logger.L().With(
		zap.Int64("trigger_id", trigger.ID),
		zap.String("event_type", trigger.EventType.String()),
	)

	if probe, ok := e.sender.(interface{ Configured() bool }); ok && !probe.Configured() {
		return e.failRun(ctx, trigger, campaign, startedAt, "no whatsapp integration configured")
	}

	strategy, err := NewStrategy(trigger.EventType, e.strategies)
	if err != nil {
		return nil, err
	}

	scope, err := e.audience.Scope(ctx, campaign.ID)
	if err != nil {
		return e.failRun(ctx, trigger, campaign, startedAt, fmt.Sprintf("resolve scope: %v", err))
	}

	menus, err := strategy.EligibleEntities(ctx, trigger, scope, startedAt)
	if err != nil {
		return e.failRun(ctx, trigger, campaign, startedAt, fmt.Sprintf("eligible entities: %v", err))
	}
	if len(menus) == 0 && trigger.EventType != model.EventInitialContact {
		log.Info("no eligible entities, nothing to send")
		return e.finish(ctx, trigger, campaign, startedAt, 0, runCounts{})
	}

	recipients, err := e.audience.Recipients(ctx, campaign.ID)
	if err != nil {
		return e.failRun(ctx, trigger, campaign, startedAt, fmt.Sprintf("resolve recipients: %v", err))
	}

	var counts runCounts
	for i := range recipients {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcome := e.processRecipient(ctx, trigger, campaign, strategy, recipients[i], menus)
		counts.add(outcome)
		metrics.RemindersTotal.WithLabelValues(trigger.EventType.String(), outcome).Inc()
	}

	log.Info("trigger run finished",
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", counts.sent),
		zap.Int("pending", counts.pending),
		zap.Int("failed", counts.failed),
		zap.Int("skipped", counts.skipped),
	)
	return e.finish(ctx, trigger, campaign, startedAt, len(recipients), counts)
}

// processRecipient resolves one recipient's conversation and delivers through
// whichever door the window allows. Per-recipient failures never abort the
// run.
func (e *Executor) processRecipient(ctx context.Context, trigger *model.Trigger, campaign *model.Campaign, strategy Strategy, rec model.Recipient, menus []model.Menu) string {
	log := logger.L().With(
		zap.Int64("trigger_id", trigger.ID),
		zap.String("phone", rec.PhoneNumber),
	)

	if rec.PhoneNumber == "" {
		log.Warn("recipient without phone number")
		return outcomeSkipped
	}

	if filter, ok := strategy.(RecipientFilter); ok {
		should, err := filter.ShouldNotify(ctx, rec, menus)
		if err != nil {
			log.Warn("recipient filter", zap.Error(err))
			return outcomeFailed
		}
		if !should {
			return outcomeSkipped
		}
	}

	// drop menus this phone was already sent for this trigger
	remaining := menus
	if len(menus) > 0 {
		sentIDs, err := e.notified.SentMenuIDs(ctx, trigger.ID, rec.PhoneNumber)
		if err != nil {
			log.Warn("load sent ledger", zap.Error(err))
			return outcomeFailed
		}
		remaining = subtractMenus(menus, sentIDs)
		if len(remaining) == 0 {
			return outcomeSkipped
		}
	}

	conv, err := e.tracker.ResolveOrOpen(ctx, rec.PhoneNumber, window.ContactHint{
		SourceType: rec.SourceType,
		CompanyID:  &rec.CompanyID,
		BranchID:   rec.BranchID,
	})
	if err != nil {
		log.Warn("resolve conversation", zap.Error(err))
		return outcomeFailed
	}

	if trigger.EventType == model.EventInitialContact {
		replied, err := e.messages.HasInbound(ctx, conv.ID)
		if err != nil {
			log.Warn("check inbound history", zap.Error(err))
			return outcomeFailed
		}
		if replied {
			return outcomeSkipped
		}
	}

	content := strategy.RenderContent(campaign, remaining)
	menuIDs := menuIDsOf(remaining)

	switch e.tracker.Status(conv) {
	case model.WindowActive:
		return e.sendText(ctx, trigger, conv, content, menuIDs, log)

	case model.WindowAwaitingResponse:
		// template already outstanding; merge into the waiting batch and let
		// the reply flush it
		if _, _, err := e.pending.Enqueue(ctx, trigger.ID, conv, content, menuIDs); err != nil {
			log.Warn("enqueue pending", zap.Error(err))
			return outcomeFailed
		}
		return outcomePending

	default: // WindowExpired
		return e.sendTemplate(ctx, trigger, conv, strategy.Template(remaining), content, menuIDs, log)
	}
}

func (e *Executor) sendText(ctx context.Context, trigger *model.Trigger, conv *model.Conversation, content string, menuIDs []int64, log *zap.Logger) string {
	res, sendErr := e.sender.SendText(ctx, conv.PhoneNumber, content)
	e.recordMessage(ctx, conv, model.MessageText, &content, nil, res, sendErr == nil && res.Success)

	if sendErr != nil || !res.Success {
		if sendErr != nil {
			log.Warn("send text", zap.Error(sendErr))
		}
		if err := e.notified.RecordFailed(ctx, trigger.ID, menuIDs, conv.PhoneNumber, conv.ID); err != nil {
			log.Warn("record failed ledger", zap.Error(err))
		}
		e.publish(ctx, conv.PhoneNumber, kafka.EventMessageFailed, trigger, conv, "text")
		return outcomeFailed
	}

	if err := e.notified.RecordSent(ctx, trigger.ID, menuIDs, conv.PhoneNumber, conv.ID, e.now()); err != nil {
		log.Warn("record sent ledger", zap.Error(err))
	}
	e.publish(ctx, conv.PhoneNumber, kafka.EventMessageSent, trigger, conv, "text")
	return outcomeSent
}

func (e *Executor) sendTemplate(ctx context.Context, trigger *model.Trigger, conv *model.Conversation, tpl whatsapp.TemplateMessage, content string, menuIDs []int64, log *zap.Logger) string {
	res, sendErr := e.sender.SendTemplate(ctx, conv.PhoneNumber, tpl)
	e.recordMessage(ctx, conv, model.MessageTemplate, nil, &tpl.Name, res, sendErr == nil && res.Success)

	if sendErr != nil || !res.Success {
		if sendErr != nil {
			log.Warn("send template", zap.Error(sendErr))
		}
		if err := e.notified.RecordFailed(ctx, trigger.ID, menuIDs, conv.PhoneNumber, conv.ID); err != nil {
			log.Warn("record failed ledger", zap.Error(err))
		}
		e.publish(ctx, conv.PhoneNumber, kafka.EventMessageFailed, trigger, conv, "template")
		return outcomeFailed
	}

	if err := e.tracker.RecordOutbound(ctx, conv, model.MessageTemplate); err != nil {
		log.Warn("record outbound", zap.Error(err))
	}
	// queue the rendered content so the recipient's reply delivers it
	if _, _, err := e.pending.Enqueue(ctx, trigger.ID, conv, content, menuIDs); err != nil {
		log.Warn("enqueue pending", zap.Error(err))
	}
	e.publish(ctx, conv.PhoneNumber, kafka.EventMessageSent, trigger, conv, "template")
	return outcomeSent
}

func (e *Executor) recordMessage(ctx context.Context, conv *model.Conversation, msgType model.MessageType, body, templateName *string, res whatsapp.SendResult, success bool) {
	msg := model.Message{
		ID:               util.New(),
		ConversationID:   conv.ID,
		Direction:        model.DirectionOutbound,
		Type:             msgType,
		Body:             body,
		TemplateName:     templateName,
		ProviderRequest:  res.RawRequest,
		ProviderResponse: res.RawResponse,
		Status:           model.StatusSent,
	}
	if res.ExternalID != "" {
		id := res.ExternalID
		msg.ExternalID = &id
	}
	status := "sent"
	if !success {
		msg.Status = model.StatusFailed
		status = "failed"
	}
	if err := e.messages.Insert(ctx, msg); err != nil {
		logger.L().Warn("record outbound message", zap.Error(err))
	}
	metrics.MessagesTotal.WithLabelValues("outbound", status).Inc()
}

func (e *Executor) publish(ctx context.Context, key, eventType string, trigger *model.Trigger, conv *model.Conversation, msgType string) {
	if e.events == nil {
		return
	}
	e.events.Publish(ctx, key, eventType, map[string]any{
		"trigger_id":      trigger.ID,
		"event_type":      trigger.EventType.String(),
		"conversation_id": conv.ID,
		"phone_number":    conv.PhoneNumber,
		"message_type":    msgType,
	})
}

// failRun records a run-fatal failure as a failed execution. Nothing was
// partially written: these aborts happen before the first recipient.
func (e *Executor) failRun(ctx context.Context, trigger *model.Trigger, campaign *model.Campaign, startedAt time.Time, msg string) (*model.CampaignExecution, error) {
	completedAt := e.now()
	exec := model.CampaignExecution{
		ID:           util.New(),
		CampaignID:   campaign.ID,
		TriggerID:    trigger.ID,
		Status:       model.ExecutionFailed,
		ErrorMessage: &msg,
		ExecutedAt:   startedAt,
		CompletedAt:  &completedAt,
	}
	if err := e.executions.Insert(ctx, exec); err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}
	logger.L().Error("trigger run failed",
		zap.Int64("trigger_id", trigger.ID),
		zap.String("error", msg),
	)
	return &exec, nil
}

func (e *Executor) finish(ctx context.Context, trigger *model.Trigger, campaign *model.Campaign, startedAt time.Time, total int, counts runCounts) (*model.CampaignExecution, error) {
	completedAt := e.now()
	exec := model.CampaignExecution{
		ID:              util.New(),
		CampaignID:      campaign.ID,
		TriggerID:       trigger.ID,
		TotalRecipients: total,
		SentCount:       counts.sent,
		FailedCount:     counts.failed,
		Status:          counts.status(),
		ExecutedAt:      startedAt,
		CompletedAt:     &completedAt,
	}
	if err := e.executions.Insert(ctx, exec); err != nil {
		return nil, fmt.Errorf("record execution: %w", err)
	}
	if err := e.campaigns.TouchLastExecuted(ctx, trigger.ID, completedAt); err != nil {
		logger.L().Warn("touch last executed", zap.Int64("trigger_id", trigger.ID), zap.Error(err))
	}
	if e.events != nil {
		e.events.Publish(ctx, exec.ID, kafka.EventExecutionCompleted, map[string]any{
			"execution_id": exec.ID,
			"trigger_id":   trigger.ID,
			"campaign_id":  campaign.ID,
			"total":        total,
			"sent":         counts.sent,
			"pending":      counts.pending,
			"failed":       counts.failed,
			"skipped":      counts.skipped,
			"status":       exec.Status.String(),
		})
	}
	return &exec, nil
}

type runCounts struct {
	sent, pending, failed, skipped int
}

func (c *runCounts) add(outcome string) {
	switch outcome {
	case outcomeSent:
		c.sent++
	case outcomePending:
		c.pending++
	case outcomeFailed:
		c.failed++
	default:
		c.skipped++
	}
}

// status maps counts to the execution verdict: any delivery failure degrades
// the run, a run that only failed is failed outright.
func (c *runCounts) status() model.ExecutionStatus {
	switch {
	case c.failed > 0 && c.sent == 0 && c.pending == 0:
		return model.ExecutionFailed
	case c.failed > 0:
		return model.ExecutionCompletedWithErrors
	default:
		return model.ExecutionCompleted
	}
}

func subtractMenus(menus []model.Menu, sentIDs []int64) []model.Menu {
	if len(sentIDs) == 0 {
		return menus
	}
	sent := make(map[int64]struct{}, len(sentIDs))
	for _, id := range sentIDs {
		sent[id] = struct{}{}
	}
	out := make([]model.Menu, 0, len(menus))
	for _, m := range menus {
		if _, ok := sent[m.ID]; ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

func menuIDsOf(menus []model.Menu) []int64 {
	ids := make([]int64, 0, len(menus))
	for _, m := range menus {
		ids = append(ids, m.ID)
	}
	return ids
}
