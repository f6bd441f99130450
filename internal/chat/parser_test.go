package chat_test

import (
	"testing"

	"github.com/feastly/reminder-gateway/internal/chat"
	"github.com/feastly/reminder-gateway/internal/model"
)

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "123",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "contacts": [{"wa_id": "56912345678", "profile": {"name": "Ana Pérez"}}],
        "messages": [
          {"id": "wamid.1", "from": "56912345678", "timestamp": "1770000000", "type": "text", "text": {"body": "hola, quiero pedir"}},
          {"id": "wamid.2", "from": "56912345678", "timestamp": "1770000001", "type": "image", "image": {"id": "media1", "caption": "foto del local"}}
        ]
      }
    }]
  }]
}`

func TestParsePayloadExtractsMessages(t *testing.T) {
	msgs, err := chat.ParsePayload([]byte(textPayload))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}

	first := msgs[0]
	if first.From != "+56912345678" {
		t.Errorf("from = %q, want normalized +56912345678", first.From)
	}
	if first.ContactName != "Ana Pérez" {
		t.Errorf("contact name = %q", first.ContactName)
	}
	if first.Type != model.MessageText || first.Body != "hola, quiero pedir" {
		t.Errorf("text message = %+v", first)
	}
	if first.ExternalID != "wamid.1" {
		t.Errorf("external id = %q", first.ExternalID)
	}

	second := msgs[1]
	if second.Type != model.MessageImage || second.Body != "foto del local" {
		t.Errorf("image message should carry its caption: %+v", second)
	}
}

func TestParsePayloadStatusOnlyDelivery(t *testing.T) {
	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "changes": [{
	      "field": "messages",
	      "value": {"statuses": [{"id": "wamid.9", "status": "delivered"}]}
	    }]
	  }]
	}`
	msgs, err := chat.ParsePayload([]byte(payload))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("status-only delivery produced %d messages", len(msgs))
	}
}

func TestParsePayloadSkipsMalformedEntries(t *testing.T) {
	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messages": [
	          {"id": "", "from": "56912345678", "type": "text", "text": {"body": "sin id"}},
	          {"id": "wamid.3", "from": "", "type": "text", "text": {"body": "sin remitente"}},
	          {"id": "wamid.4", "from": "56912345678", "type": "sticker"},
	          {"id": "wamid.5", "from": "56912345678", "type": "text", "text": {"body": "válido"}}
	        ]
	      }
	    }]
	  }]
	}`
	msgs, err := chat.ParsePayload([]byte(payload))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %+v, want the sticker and the valid text", msgs)
	}
	if msgs[0].Type != model.MessageOther || msgs[0].Body != "" {
		t.Errorf("sticker should be recorded bodiless as other: %+v", msgs[0])
	}
	if msgs[1].Body != "válido" {
		t.Errorf("text message = %+v", msgs[1])
	}
}

func TestParsePayloadRejectsForeignObjects(t *testing.T) {
	if _, err := chat.ParsePayload([]byte(`{"object": "page", "entry": []}`)); err == nil {
		t.Fatalf("foreign webhook object accepted")
	}
	if _, err := chat.ParsePayload([]byte(`not json`)); err == nil {
		t.Fatalf("malformed body accepted")
	}
}

func TestParsePayloadLocationHasNoBody(t *testing.T) {
	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messages": [
	          {"id": "wamid.6", "from": "56912345678", "type": "location", "location": {"latitude": -33.4, "longitude": -70.6}}
	        ]
	      }
	    }]
	  }]
	}`
	msgs, err := chat.ParsePayload([]byte(payload))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != model.MessageLocation || msgs[0].Body != "" {
		t.Fatalf("location message = %+v", msgs)
	}
}
