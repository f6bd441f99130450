package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feastly/reminder-gateway/internal/chat"
	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/window"
)

type stubConversations struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Conversation
}

func newStubConversations() *stubConversations {
	return &stubConversations{rows: map[int64]*model.Conversation{}}
}

func (s *stubConversations) FindActiveByPhone(_ context.Context, phone string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.rows {
		if c.PhoneNumber == phone && c.Status != model.ConversationClosed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubConversations) GetByID(_ context.Context, id int64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *stubConversations) Insert(_ context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	cp := *c
	s.rows[c.ID] = &cp
	return nil
}

func (s *stubConversations) OpenWindow(_ context.Context, id int64, at, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return errors.New("no conversation")
	}
	c.Status = model.ConversationReceived
	c.LastMessageAt = &at
	c.WindowExpiresAt = &expiresAt
	return nil
}

func (s *stubConversations) MarkAwaitingReply(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.rows[id]; ok {
		c.Status = model.ConversationAwaitingReply
	}
	return nil
}

func (s *stubConversations) SetClientNameIfEmpty(_ context.Context, id int64, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok || c.ClientName != nil {
		return false, nil
	}
	c.ClientName = &name
	return true, nil
}

func (s *stubConversations) Close(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.rows[id]; ok {
		c.Status = model.ConversationClosed
	}
	return nil
}

type stubMessages struct {
	mu   sync.Mutex
	rows []model.Message
}

func (s *stubMessages) Insert(_ context.Context, m model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, m)
	return nil
}

func (s *stubMessages) HasInbound(_ context.Context, conversationID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.rows {
		if m.ConversationID == conversationID && m.Direction == model.DirectionInbound {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubMessages) AttachProviderResponse(_ context.Context, id string, status model.MessageStatus, externalID *string, response []byte) error {
	return nil
}

type stubDirectory struct {
	owners map[string]*model.Recipient
	fail   bool
}

func (s *stubDirectory) Recipients(context.Context, int64) ([]model.Recipient, error) {
	return nil, nil
}

func (s *stubDirectory) Scope(context.Context, int64) (model.AudienceScope, error) {
	return model.AudienceScope{}, nil
}

func (s *stubDirectory) ResolveOwner(_ context.Context, phone string) (*model.Recipient, error) {
	if s.fail {
		return nil, errors.New("directory unavailable")
	}
	return s.owners[phone], nil
}

type procEnv struct {
	now       time.Time
	convs     *stubConversations
	msgs      *stubMessages
	directory *stubDirectory
	tracker   *window.Tracker
	proc      *chat.Processor
}

func newProcEnv(t *testing.T) *procEnv {
	t.Helper()
	e := &procEnv{
		now:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		convs:     newStubConversations(),
		msgs:      &stubMessages{},
		directory: &stubDirectory{owners: map[string]*model.Recipient{}},
	}
	e.tracker = window.NewTracker(e.convs, e.msgs, 24).WithClock(func() time.Time { return e.now })
	e.proc = chat.NewProcessor(e.tracker, e.directory, e.msgs, nil)
	return e
}

func payloadWithText(from, name, id, body string) string {
	return `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "contacts": [{"wa_id": "` + from + `", "profile": {"name": "` + name + `"}}],
	        "messages": [{"id": "` + id + `", "from": "` + from + `", "type": "text", "text": {"body": "` + body + `"}}]
	      }
	    }]
	  }]
	}`
}

func TestProcessPayloadOpensWindowAndPersists(t *testing.T) {
	e := newProcEnv(t)
	branchID := int64(7)
	e.directory.owners["+56912345678"] = &model.Recipient{
		PhoneNumber: "+56912345678",
		SourceType:  model.SourceBranch,
		CompanyID:   1,
		BranchID:    &branchID,
	}

	n, err := e.proc.ProcessPayload(context.Background(), []byte(payloadWithText("56912345678", "Ana", "wamid.1", "hola")))
	if err != nil {
		t.Fatalf("ProcessPayload: %v", err)
	}
	if n != 1 {
		t.Fatalf("processed = %d, want 1", n)
	}

	conv, err := e.tracker.Peek(context.Background(), "+56912345678")
	if err != nil || conv == nil {
		t.Fatalf("Peek: conv=%v err=%v", conv, err)
	}
	if e.tracker.Status(conv) != model.WindowActive {
		t.Errorf("window status = %s, want active", e.tracker.Status(conv))
	}
	if conv.SourceType != model.SourceBranch || conv.BranchID == nil || *conv.BranchID != branchID {
		t.Errorf("owner attribution lost: %+v", conv)
	}
	if conv.ClientName == nil || *conv.ClientName != "Ana" {
		t.Errorf("client name = %v, want Ana", conv.ClientName)
	}
	wantExpiry := e.now.Add(24 * time.Hour)
	if conv.WindowExpiresAt == nil || !conv.WindowExpiresAt.Equal(wantExpiry) {
		t.Errorf("window expires at %v, want %v", conv.WindowExpiresAt, wantExpiry)
	}

	e.msgs.mu.Lock()
	defer e.msgs.mu.Unlock()
	if len(e.msgs.rows) != 1 {
		t.Fatalf("message rows = %d, want 1", len(e.msgs.rows))
	}
	row := e.msgs.rows[0]
	if row.Direction != model.DirectionInbound || row.Status != model.StatusReceived {
		t.Errorf("message row = %+v", row)
	}
	if row.Body == nil || *row.Body != "hola" {
		t.Errorf("body = %v, want hola", row.Body)
	}
	if row.ExternalID == nil || *row.ExternalID != "wamid.1" {
		t.Errorf("external id = %v", row.ExternalID)
	}
}

func TestProcessPayloadUnknownContact(t *testing.T) {
	e := newProcEnv(t)

	if _, err := e.proc.ProcessPayload(context.Background(), []byte(payloadWithText("56999999999", "", "wamid.2", "quién eres"))); err != nil {
		t.Fatalf("ProcessPayload: %v", err)
	}

	conv, _ := e.tracker.Peek(context.Background(), "+56999999999")
	if conv == nil {
		t.Fatal("unknown contact should still get a conversation")
	}
	if conv.SourceType != model.SourceUnknown {
		t.Errorf("source type = %s, want unknown", conv.SourceType)
	}
	if conv.CompanyID != nil {
		t.Errorf("company id = %v, want nil", conv.CompanyID)
	}
}

func TestProcessPayloadReusesOpenConversation(t *testing.T) {
	e := newProcEnv(t)

	if _, err := e.proc.ProcessPayload(context.Background(), []byte(payloadWithText("56912345678", "Ana", "wamid.3", "primer mensaje"))); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	e.now = e.now.Add(2 * time.Hour)
	if _, err := e.proc.ProcessPayload(context.Background(), []byte(payloadWithText("56912345678", "Pedro", "wamid.4", "segundo mensaje"))); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	e.convs.mu.Lock()
	open := 0
	var conv model.Conversation
	for _, c := range e.convs.rows {
		if c.Status != model.ConversationClosed {
			open++
			conv = *c
		}
	}
	e.convs.mu.Unlock()
	if open != 1 {
		t.Fatalf("open conversations = %d, want 1", open)
	}
	if conv.ClientName == nil || *conv.ClientName != "Ana" {
		t.Errorf("client name = %v, first contact name should stick", conv.ClientName)
	}
	wantExpiry := e.now.Add(24 * time.Hour)
	if conv.WindowExpiresAt == nil || !conv.WindowExpiresAt.Equal(wantExpiry) {
		t.Errorf("second message should extend the window: %v, want %v", conv.WindowExpiresAt, wantExpiry)
	}
}

func TestProcessPayloadPartialFailureKeepsBatch(t *testing.T) {
	e := newProcEnv(t)
	e.directory.fail = true

	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messages": [
	          {"id": "wamid.5", "from": "56912345678", "type": "text", "text": {"body": "uno"}},
	          {"id": "wamid.6", "from": "56922222222", "type": "text", "text": {"body": "dos"}}
	        ]
	      }
	    }]
	  }]
	}`
	n, err := e.proc.ProcessPayload(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("per-message failures must not fail the delivery: %v", err)
	}
	if n != 0 {
		t.Fatalf("processed = %d, want 0 when every message fails", n)
	}
}

func TestProcessPayloadRejectsUnparseableBody(t *testing.T) {
	e := newProcEnv(t)
	if _, err := e.proc.ProcessPayload(context.Background(), []byte(`{"object":"page"}`)); err == nil {
		t.Fatal("foreign payload accepted")
	}
	_, err := e.proc.ProcessPayload(context.Background(), []byte("garbage"))
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("decode failure should surface in the error, got %v", err)
	}
}
