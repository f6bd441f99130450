// Package chat handles the inbound leg: parsing provider webhook payloads
// and turning them into conversation state changes.
package chat

import (
	"encoding/json"
	"fmt"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/util"
)

// InboundMessage is one user message extracted from a webhook delivery.
type InboundMessage struct {
	From        string
	ContactName string
	ExternalID  string
	Type        model.MessageType
	Body        string
}

// Graph API webhook envelope, v24 shape.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string        `json:"field"`
			Value webhookChange `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookChange struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []struct {
		ID       string        `json:"id"`
		From     string        `json:"from"`
		Type     string        `json:"type"`
		Text     *captionedRef `json:"text"`
		Image    *captionedRef `json:"image"`
		Video    *captionedRef `json:"video"`
		Document *captionedRef `json:"document"`
	} `json:"messages"`
}

type captionedRef struct {
	Body    string `json:"body"`
	Caption string `json:"caption"`
}

// ParsePayload extracts the inbound messages from a raw webhook body.
// Status-only deliveries yield an empty slice; malformed entries are skipped,
// not fatal. Unmodeled kinds (stickers, audio) come back as bodiless "other"
// messages so the reply still counts for the window.
func ParsePayload(raw []byte) ([]InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	if payload.Object != "whatsapp_business_account" {
		return nil, fmt.Errorf("unexpected webhook object %q", payload.Object)
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, m := range change.Value.Messages {
				if m.From == "" || m.ID == "" {
					continue
				}
				msgType, body, ok := classify(m.Type, m.Text, m.Image, m.Video, m.Document)
				if !ok {
					continue
				}
				out = append(out, InboundMessage{
					From:        util.NormalizePhone(m.From),
					ContactName: names[m.From],
					ExternalID:  m.ID,
					Type:        msgType,
					Body:        body,
				})
			}
		}
	}
	return out, nil
}

func classify(kind string, text, image, video, document *captionedRef) (model.MessageType, string, bool) {
	switch kind {
	case "text":
		if text == nil {
			return "", "", false
		}
		return model.MessageText, text.Body, true
	case "image":
		return model.MessageImage, caption(image), true
	case "video":
		return model.MessageVideo, caption(video), true
	case "document":
		return model.MessageDocument, caption(document), true
	case "location":
		return model.MessageLocation, "", true
	default:
		return model.MessageOther, "", true
	}
}

func caption(ref *captionedRef) string {
	if ref == nil {
		return ""
	}
	return ref.Caption
}
