package platforms

import (
	"testing"
	"time"

	"socialhub/models"
)

const waTextWebhook = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "waba-1",
    "changes": [{
      "field": "messages",
      "value": {
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "10001"},
        "contacts": [{"wa_id": "15551234567", "profile": {"name": "Ana"}}],
        "messages": [{
          "from": "15551234567",
          "id": "wamid.AAA",
          "timestamp": "1756400000",
          "type": "text",
          "text": {"body": "Hello"}
        }]
      }
    }]
  }]
}`

func TestWhatsAppParseInboundText(t *testing.T) {
	events, err := WhatsAppAdapter{}.ParseInbound([]byte(waTextWebhook))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.RoutingKey != "10001" {
		t.Fatalf("expected phone_number_id routing key, got %q", ev.RoutingKey)
	}
	if len(ev.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(ev.Messages))
	}

	m := ev.Messages[0]
	if m.ExternalID != "wamid.AAA" || m.SenderID != "15551234567" || m.SenderName != "Ana" {
		t.Fatalf("unexpected message identity: %+v", m)
	}
	if m.Type != models.MESSAGE_TYPE_TEXT || m.Text != "Hello" {
		t.Fatalf("unexpected content: %+v", m)
	}
	if !m.Timestamp.Equal(time.Unix(1756400000, 0)) {
		t.Fatalf("unexpected timestamp: %v", m.Timestamp)
	}
}

func TestWhatsAppParseInboundMedia(t *testing.T) {
	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [{"field": "messages", "value": {
	    "metadata": {"phone_number_id": "10001"},
	    "messages": [{
	      "from": "15551234567",
	      "id": "wamid.IMG",
	      "timestamp": "1756400000",
	      "type": "image",
	      "image": {"id": "media-1", "mime_type": "image/jpeg", "caption": "receipt"}
	    }]
	  }}]}]
	}`

	events, err := WhatsAppAdapter{}.ParseInbound([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := events[0].Messages[0]
	if m.Type != models.MESSAGE_TYPE_IMAGE || m.MediaID != "media-1" || m.Caption != "receipt" {
		t.Fatalf("unexpected media message: %+v", m)
	}
}

func TestWhatsAppParseInboundStatuses(t *testing.T) {
	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [{"field": "messages", "value": {
	    "metadata": {"phone_number_id": "10001"},
	    "statuses": [
	      {"id": "wamid.OUT", "status": "delivered", "recipient_id": "15551234567", "timestamp": "1756400000"},
	      {"id": "wamid.BAD", "status": "failed", "errors": [{"code": 131047, "title": "Re-engagement message"}]}
	    ]
	  }}]}]
	}`

	events, err := WhatsAppAdapter{}.ParseInbound([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	statuses := events[0].Statuses
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].ExternalID != "wamid.OUT" || statuses[0].Status != models.MESSAGE_STATUS_DELIVERED {
		t.Fatalf("unexpected status: %+v", statuses[0])
	}
	if statuses[1].Status != models.MESSAGE_STATUS_FAILED ||
		statuses[1].ErrorCode != "131047" ||
		statuses[1].ErrorMessage != "Re-engagement message" {
		t.Fatalf("unexpected failure status: %+v", statuses[1])
	}
}

func TestWhatsAppParseInboundIgnoresOtherFields(t *testing.T) {
	payload := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [{"field": "account_update", "value": {}}]}]
	}`

	events, err := WhatsAppAdapter{}.ParseInbound([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for non-message changes, got %d", len(events))
	}
}

func TestWhatsAppBuildTextPayload(t *testing.T) {
	payload, err := WhatsAppAdapter{}.BuildPayload(SendRequest{
		RecipientID: "+1 555 123 4567",
		MessageType: models.MESSAGE_TYPE_TEXT,
		Content:     "Hi there",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if payload["messaging_product"] != "whatsapp" || payload["type"] != "text" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["to"] != "15551234567" {
		t.Fatalf("expected digits-only recipient, got %v", payload["to"])
	}
	text := payload["text"].(map[string]any)
	if text["body"] != "Hi there" {
		t.Fatalf("unexpected body: %v", text)
	}
}

func TestWhatsAppBuildTemplatePayload(t *testing.T) {
	payload, err := WhatsAppAdapter{}.BuildPayload(SendRequest{
		RecipientID:      "15551234567",
		MessageType:      models.MESSAGE_TYPE_TEMPLATE,
		TemplateName:     "order_update",
		TemplateLanguage: "en_US",
		TemplateParams:   []string{"Ana", "A100"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	template := payload["template"].(map[string]any)
	if template["name"] != "order_update" {
		t.Fatalf("unexpected template: %v", template)
	}
	language := template["language"].(map[string]any)
	if language["code"] != "en_US" {
		t.Fatalf("unexpected language: %v", language)
	}
	components := template["components"].([]map[string]any)
	parameters := components[0]["parameters"].([]map[string]any)
	if len(parameters) != 2 || parameters[0]["text"] != "Ana" || parameters[1]["text"] != "A100" {
		t.Fatalf("unexpected parameters: %v", parameters)
	}
}

func TestWhatsAppBuildMediaPayloadAudioDropsCaption(t *testing.T) {
	payload, err := WhatsAppAdapter{}.BuildPayload(SendRequest{
		RecipientID: "15551234567",
		MessageType: models.MESSAGE_TYPE_AUDIO,
		MediaURL:    "https://cdn.example.com/a.mp3",
		Caption:     "ignored",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	media := payload["audio"].(map[string]any)
	if media["link"] != "https://cdn.example.com/a.mp3" {
		t.Fatalf("unexpected media: %v", media)
	}
	if _, hasCaption := media["caption"]; hasCaption {
		t.Fatal("audio must not carry a caption")
	}
}

func TestWhatsAppBuildPayloadRejectsUnknownType(t *testing.T) {
	if _, err := (WhatsAppAdapter{}).BuildPayload(SendRequest{
		RecipientID: "15551234567",
		MessageType: "carousel",
	}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
