package reminder_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
)

// ---- conversations ----

type memConversations struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*model.Conversation
}

func newMemConversations() *memConversations {
	return &memConversations{rows: make(map[int64]*model.Conversation)}
}

func (f *memConversations) FindActiveByPhone(_ context.Context, phone string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *model.Conversation
	for _, c := range f.rows {
		if c.PhoneNumber != phone || c.Status == model.ConversationClosed {
			continue
		}
		if found == nil || c.ID > found.ID {
			found = c
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (f *memConversations) GetByID(_ context.Context, id int64) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *memConversations) Insert(_ context.Context, c *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	c.ID = f.seq
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *memConversations) OpenWindow(_ context.Context, id int64, at, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok && c.Status != model.ConversationClosed {
		c.Status = model.ConversationReceived
		c.LastMessageAt = &at
		c.WindowExpiresAt = &expiresAt
	}
	return nil
}

func (f *memConversations) MarkAwaitingReply(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok && c.Status != model.ConversationClosed {
		c.Status = model.ConversationAwaitingReply
	}
	return nil
}

func (f *memConversations) SetClientNameIfEmpty(_ context.Context, id int64, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.ClientName != nil {
		return false, nil
	}
	c.ClientName = &name
	return true, nil
}

func (f *memConversations) Close(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.rows[id]; ok {
		c.Status = model.ConversationClosed
	}
	return nil
}

// ---- messages ----

type memMessages struct {
	mu   sync.Mutex
	rows []model.Message
}

func (f *memMessages) Insert(_ context.Context, m model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
	return nil
}

func (f *memMessages) HasInbound(_ context.Context, conversationID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ConversationID == conversationID && m.Direction == model.DirectionInbound {
			return true, nil
		}
	}
	return false, nil
}

func (f *memMessages) AttachProviderResponse(context.Context, string, model.MessageStatus, *string, []byte) error {
	return nil
}

func (f *memMessages) byType(msgType model.MessageType) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.rows {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// ---- campaigns ----

type memCampaigns struct {
	campaigns map[int64]*model.Campaign
	triggers  map[int64]*model.Trigger
	touched   []int64
}

func (f *memCampaigns) GetCampaign(_ context.Context, id int64) (*model.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *memCampaigns) GetTrigger(_ context.Context, id int64) (*model.Trigger, error) {
	t, ok := f.triggers[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *memCampaigns) ListActiveTriggers(_ context.Context, eventType model.EventType) ([]model.Trigger, error) {
	var out []model.Trigger
	for _, t := range f.triggers {
		if t.EventType == eventType && t.IsActive {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *memCampaigns) TouchLastExecuted(_ context.Context, triggerID int64, at time.Time) error {
	f.touched = append(f.touched, triggerID)
	if t, ok := f.triggers[triggerID]; ok {
		t.LastExecutedAt = &at
	}
	return nil
}

// ---- audience ----

type memAudience struct {
	recipients []model.Recipient
	scope      model.AudienceScope
}

func (f *memAudience) Recipients(context.Context, int64) ([]model.Recipient, error) {
	return f.recipients, nil
}

func (f *memAudience) Scope(context.Context, int64) (model.AudienceScope, error) {
	return f.scope, nil
}

func (f *memAudience) ResolveOwner(_ context.Context, phone string) (*model.Recipient, error) {
	for i := range f.recipients {
		if f.recipients[i].PhoneNumber == phone {
			cp := f.recipients[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// ---- notified ledger ----

type notifiedKey struct {
	triggerID int64
	menuID    int64
	phone     string
}

type memNotified struct {
	mu   sync.Mutex
	rows map[notifiedKey]model.NotifiedStatus
}

func newMemNotified() *memNotified {
	return &memNotified{rows: make(map[notifiedKey]model.NotifiedStatus)}
}

func (f *memNotified) SentMenuIDs(_ context.Context, triggerID int64, phone string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for k, st := range f.rows {
		if k.triggerID == triggerID && k.phone == phone && st == model.NotifiedSent {
			ids = append(ids, k.menuID)
		}
	}
	return ids, nil
}

func (f *memNotified) RecordPending(_ context.Context, triggerID int64, menuIDs []int64, phone string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range menuIDs {
		k := notifiedKey{triggerID, id, phone}
		if _, exists := f.rows[k]; !exists {
			f.rows[k] = model.NotifiedPending
		}
	}
	return nil
}

func (f *memNotified) RecordSent(_ context.Context, triggerID int64, menuIDs []int64, phone string, _ int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range menuIDs {
		f.rows[notifiedKey{triggerID, id, phone}] = model.NotifiedSent
	}
	return nil
}

func (f *memNotified) RecordFailed(_ context.Context, triggerID int64, menuIDs []int64, phone string, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range menuIDs {
		k := notifiedKey{triggerID, id, phone}
		if f.rows[k] != model.NotifiedSent {
			f.rows[k] = model.NotifiedFailed
		}
	}
	return nil
}

func (f *memNotified) MarkSentWhilePending(_ context.Context, triggerID int64, menuIDs []int64, phone string, _ time.Time) error {
	return f.markWhilePending(triggerID, menuIDs, phone, model.NotifiedSent)
}

func (f *memNotified) MarkFailedWhilePending(_ context.Context, triggerID int64, menuIDs []int64, phone string) error {
	return f.markWhilePending(triggerID, menuIDs, phone, model.NotifiedFailed)
}

func (f *memNotified) markWhilePending(triggerID int64, menuIDs []int64, phone string, to model.NotifiedStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range menuIDs {
		k := notifiedKey{triggerID, id, phone}
		if f.rows[k] == model.NotifiedPending {
			f.rows[k] = to
		}
	}
	return nil
}

func (f *memNotified) status(triggerID, menuID int64, phone string) model.NotifiedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[notifiedKey{triggerID, menuID, phone}]
}

// ---- executions ----

type memExecutions struct {
	mu   sync.Mutex
	rows []model.CampaignExecution
}

func (f *memExecutions) Insert(_ context.Context, e model.CampaignExecution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, e)
	return nil
}

func (f *memExecutions) ListByTrigger(_ context.Context, triggerID int64, _ int) ([]model.CampaignExecution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CampaignExecution
	for _, e := range f.rows {
		if e.TriggerID == triggerID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- pending ----

type memPending struct {
	mu   sync.Mutex
	seq  int
	rows map[string]*model.PendingNotification
	now  func() time.Time
}

func newMemPending(now func() time.Time) *memPending {
	return &memPending{rows: make(map[string]*model.PendingNotification), now: now}
}

func (f *memPending) Enqueue(_ context.Context, triggerID, conversationID int64, phone, content string, menuIDs []int64) (*model.PendingNotification, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.TriggerID == triggerID && p.ConversationID == conversationID && p.Status == model.PendingWaitingResponse {
			p.MenuIDs = p.MenuIDs.Merge(menuIDs)
			cp := *p
			return &cp, false, nil
		}
	}
	f.seq++
	p := &model.PendingNotification{
		ID:             fmt.Sprintf("pending-%d", f.seq),
		TriggerID:      triggerID,
		ConversationID: conversationID,
		PhoneNumber:    phone,
		MessageContent: content,
		MenuIDs:        model.MenuIDList(nil).Merge(menuIDs),
		Status:         model.PendingWaitingResponse,
		CreatedAt:      f.now(),
	}
	f.rows[p.ID] = p
	cp := *p
	return &cp, true, nil
}

func (f *memPending) ListWaitingByConversation(_ context.Context, conversationID int64) ([]model.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PendingNotification
	for _, p := range f.rows {
		if p.ConversationID == conversationID && p.Status == model.PendingWaitingResponse {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *memPending) ListWaiting(context.Context) ([]model.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PendingNotification
	for _, p := range f.rows {
		if p.Status == model.PendingWaitingResponse {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *memPending) MarkSent(_ context.Context, id string) (bool, error) {
	return f.transition(id, model.PendingSent), nil
}

func (f *memPending) MarkExpired(_ context.Context, id string) (bool, error) {
	return f.transition(id, model.PendingExpired), nil
}

func (f *memPending) transition(id string, to model.PendingStatus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok || p.Status != model.PendingWaitingResponse {
		return false
	}
	p.Status = to
	return true
}

func (f *memPending) get(id string) *model.PendingNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (f *memPending) waiting() []model.PendingNotification {
	out, _ := f.ListWaiting(context.Background())
	return out
}

// ---- menus / orders ----

type memMenus struct {
	menus []model.Menu
}

func (f *memMenus) CreatedSince(_ context.Context, since time.Time, _ model.AudienceScope) ([]model.Menu, error) {
	var out []model.Menu
	for _, m := range f.menus {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *memMenus) ClosingBefore(_ context.Context, until time.Time, _ model.AudienceScope) ([]model.Menu, error) {
	var out []model.Menu
	for _, m := range f.menus {
		if !m.MaxOrderDate.After(until) {
			out = append(out, m)
		}
	}
	return out, nil
}

type memOrders struct {
	// covered dates per owner, keyed "branch:<id>" / "company:<id>"
	covered map[string][]string
}

func (f *memOrders) BranchHasOrdersForDates(_ context.Context, branchID int64, dates []string) (bool, error) {
	return f.hasAll(fmt.Sprintf("branch:%d", branchID), dates), nil
}

func (f *memOrders) CompanyHasOrdersForDates(_ context.Context, companyID int64, dates []string) (bool, error) {
	return f.hasAll(fmt.Sprintf("company:%d", companyID), dates), nil
}

func (f *memOrders) hasAll(key string, dates []string) bool {
	have := make(map[string]bool)
	for _, d := range f.covered[key] {
		have[d] = true
	}
	for _, d := range dates {
		if !have[d] {
			return false
		}
	}
	return true
}

// ---- sender ----

type sentCall struct {
	phone    string
	body     string
	template string
}

type fakeSender struct {
	mu        sync.Mutex
	texts     []sentCall
	templates []sentCall
	failPhone string // sends to this phone fail
}

func (f *fakeSender) SendText(_ context.Context, phone, body string) (whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if phone == f.failPhone {
		return whatsapp.SendResult{ProviderStatus: 500}, errors.New("provider down")
	}
	f.texts = append(f.texts, sentCall{phone: phone, body: body})
	return whatsapp.SendResult{Success: true, ProviderStatus: 200, ExternalID: "wamid.text"}, nil
}

func (f *fakeSender) SendTemplate(_ context.Context, phone string, tpl whatsapp.TemplateMessage) (whatsapp.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if phone == f.failPhone {
		return whatsapp.SendResult{ProviderStatus: 500}, errors.New("provider down")
	}
	f.templates = append(f.templates, sentCall{phone: phone, template: tpl.Name})
	return whatsapp.SendResult{Success: true, ProviderStatus: 200, ExternalID: "wamid.tpl"}, nil
}

// ---- run lock ----

type fakeLocker struct {
	held bool
}

func (f *fakeLocker) Acquire(context.Context, int64) (func(), bool, error) {
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func() { f.held = false }, true, nil
}
