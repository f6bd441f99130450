package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/feastly/reminder-gateway/internal/config"
)

// CloudSender talks to the Graph API messages endpoint. It captures the raw
// request/response for auditing and reports provider errors through the
// SendResult rather than masking them behind a bare error.
type CloudSender struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	client        *http.Client
	br            *Breaker
}

func NewCloudSender(cfg config.WhatsAppConfig) (*CloudSender, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" || strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, ErrNoIntegration
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	failThreshold := cfg.Breaker.FailThreshold
	if failThreshold <= 0 {
		failThreshold = 3
	}
	openForMs := cfg.Breaker.OpenForMs
	if openForMs <= 0 {
		openForMs = 15000
	}

	return &CloudSender{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		client:        &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:            NewBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}, nil
}

var _ Sender = (*CloudSender)(nil)

func (s *CloudSender) SendText(ctx context.Context, phone, body string) (SendResult, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]any{"body": body},
	}
	return s.post(ctx, payload)
}

func (s *CloudSender) SendTemplate(ctx context.Context, phone string, tpl TemplateMessage) (SendResult, error) {
	params := make([]map[string]any, 0, len(tpl.Params))
	for _, p := range tpl.Params {
		params = append(params, map[string]any{
			"type":           "text",
			"parameter_name": p.Name,
			"text":           p.Text,
		})
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "template",
		"template": map[string]any{
			"name":     tpl.Name,
			"language": map[string]any{"code": tpl.Language},
			"components": []map[string]any{
				{"type": "body", "parameters": params},
			},
		},
	}
	return s.post(ctx, payload)
}

type cloudResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (s *CloudSender) post(ctx context.Context, payload map[string]any) (SendResult, error) {
	if !s.br.Allow() {
		return SendResult{}, ErrNotReady
	}

	rawReq, err := json.Marshal(payload)
	if err != nil {
		s.br.Failure()
		return SendResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(rawReq))
	if err != nil {
		s.br.Failure()
		return SendResult{RawRequest: rawReq}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		s.br.Failure()
		return SendResult{RawRequest: rawReq}, err
	}
	defer res.Body.Close()

	rawRes, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	result := SendResult{
		ProviderStatus: res.StatusCode,
		RawRequest:     rawReq,
		RawResponse:    rawRes,
	}

	if res.StatusCode/100 != 2 {
		s.br.Failure()
		return result, fmt.Errorf("whatsapp api status=%d", res.StatusCode)
	}

	s.br.Success()
	result.Success = true

	var parsed cloudResponse
	if err := json.Unmarshal(rawRes, &parsed); err == nil && len(parsed.Messages) > 0 {
		result.ExternalID = parsed.Messages[0].ID
	}
	return result, nil
}
