package whatsapp

import (
	"context"
	"errors"
)

var (
	// ErrNoIntegration means the Cloud API credentials are not configured; a
	// trigger run aborts on it rather than failing recipient by recipient.
	ErrNoIntegration = errors.New("whatsapp integration not configured")
	ErrNotReady      = errors.New("whatsapp endpoint not ready")
)

// TemplateParam is one named body parameter of an approved template.
type TemplateParam struct {
	Name string `json:"parameter_name"`
	Text string `json:"text"`
}

// TemplateMessage is a pre-approved message usable outside an open window.
type TemplateMessage struct {
	Name     string
	Language string
	Params   []TemplateParam
}

// SendResult carries the provider outcome plus the raw wire exchange for the
// messages audit columns.
type SendResult struct {
	Success        bool
	ProviderStatus int
	ExternalID     string
	RawRequest     []byte
	RawResponse    []byte
}

// Sender sends rendered messages through the messaging provider. Free-form
// text is only deliverable inside an open 24h window; templates work anytime.
type Sender interface {
	SendText(ctx context.Context, phone, body string) (SendResult, error)
	SendTemplate(ctx context.Context, phone string, tpl TemplateMessage) (SendResult, error)
}

// Disabled returns a sender that rejects every send with ErrNoIntegration.
// Used when the Cloud API credentials are absent so the rest of the process
// can still serve webhooks and reports.
func Disabled() Sender { return disabledSender{} }

type disabledSender struct{}

// Configured lets callers detect the missing integration before walking a
// recipient list.
func (disabledSender) Configured() bool { return false }

func (disabledSender) SendText(context.Context, string, string) (SendResult, error) {
	return SendResult{}, ErrNoIntegration
}

func (disabledSender) SendTemplate(context.Context, string, TemplateMessage) (SendResult, error) {
	return SendResult{}, ErrNoIntegration
}
