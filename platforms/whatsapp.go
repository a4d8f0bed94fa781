package platforms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"socialhub/models"
	"socialhub/tools"
)

type WhatsAppAdapter struct{}

func (WhatsAppAdapter) Platform() string { return models.PLATFORM_WHATSAPP }

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type waEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
					Image    *waMedia `json:"image"`
					Document *waMedia `json:"document"`
					Audio    *waMedia `json:"audio"`
					Video    *waMedia `json:"video"`
					Sticker  *waMedia `json:"sticker"`
					Reaction *struct {
						MessageID string `json:"message_id"`
						Emoji     string `json:"emoji"`
					} `json:"reaction"`
				} `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					RecipientID string `json:"recipient_id"`
					Timestamp   string `json:"timestamp"`
					Errors      []struct {
						Code    int    `json:"code"`
						Title   string `json:"title"`
						Message string `json:"message"`
					} `json:"errors"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseInbound normalizes a whatsapp_business_account webhook. One event is
// emitted per change, keyed by the metadata phone_number_id.
func (a WhatsAppAdapter) ParseInbound(payload []byte) ([]InboundEvent, error) {
	var envelope waEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	var events []InboundEvent
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			value := change.Value
			ev := InboundEvent{RoutingKey: value.Metadata.PhoneNumberID}

			names := map[string]string{}
			for _, contact := range value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, m := range value.Messages {
				im := InboundMessage{
					ExternalID: m.ID,
					SenderID:   m.From,
					SenderName: names[m.From],
					Timestamp:  parseUnixSeconds(m.Timestamp),
				}
				switch strings.ToLower(m.Type) {
				case "text":
					im.Type = models.MESSAGE_TYPE_TEXT
					if m.Text != nil {
						im.Text = m.Text.Body
					}
				case "image":
					im.Type = models.MESSAGE_TYPE_IMAGE
					applyMedia(&im, m.Image)
				case "document":
					im.Type = models.MESSAGE_TYPE_DOCUMENT
					applyMedia(&im, m.Document)
				case "audio":
					im.Type = models.MESSAGE_TYPE_AUDIO
					applyMedia(&im, m.Audio)
				case "video":
					im.Type = models.MESSAGE_TYPE_VIDEO
					applyMedia(&im, m.Video)
				case "sticker":
					im.Type = models.MESSAGE_TYPE_STICKER
					applyMedia(&im, m.Sticker)
				case "reaction":
					im.Type = models.MESSAGE_TYPE_REACTION
					if m.Reaction != nil {
						im.Text = m.Reaction.Emoji
					}
				}
				ev.Messages = append(ev.Messages, im)
			}

			for _, s := range value.Statuses {
				su := StatusUpdate{ExternalID: s.ID, Status: normalizeWaStatus(s.Status)}
				if len(s.Errors) > 0 {
					su.ErrorCode = strconv.Itoa(s.Errors[0].Code)
					su.ErrorMessage = s.Errors[0].Title
					if s.Errors[0].Message != "" {
						su.ErrorMessage = s.Errors[0].Message
					}
				}
				ev.Statuses = append(ev.Statuses, su)
			}

			events = append(events, ev)
		}
	}
	return events, nil
}

func applyMedia(im *InboundMessage, media *waMedia) {
	if media == nil {
		return
	}
	im.MediaID = media.ID
	im.Caption = media.Caption
	if media.Filename != "" && im.Caption == "" {
		im.Caption = media.Filename
	}
}

func normalizeWaStatus(status string) string {
	switch strings.ToLower(status) {
	case "sent":
		return models.MESSAGE_STATUS_SENT
	case "delivered":
		return models.MESSAGE_STATUS_DELIVERED
	case "read":
		return models.MESSAGE_STATUS_READ
	case "failed":
		return models.MESSAGE_STATUS_FAILED
	}
	return ""
}

func parseUnixSeconds(s string) time.Time {
	if secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0)
	}
	return time.Now()
}

// BuildPayload constructs the Cloud API send payload: digits-only recipient
// and a typed body. Template components map the ordered positional
// parameters the dispatcher resolved from the registry.
func (a WhatsAppAdapter) BuildPayload(req SendRequest) (map[string]any, error) {
	to, err := tools.NormalizeRecipientPhone(req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
	}

	switch req.MessageType {
	case models.MESSAGE_TYPE_TEXT:
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": req.Content, "preview_url": false}

	case models.MESSAGE_TYPE_TEMPLATE:
		template := map[string]any{
			"name":     req.TemplateName,
			"language": map[string]any{"code": req.TemplateLanguage},
		}
		if len(req.TemplateParams) > 0 {
			parameters := make([]map[string]any, 0, len(req.TemplateParams))
			for _, value := range req.TemplateParams {
				parameters = append(parameters, map[string]any{"type": "text", "text": value})
			}
			template["components"] = []map[string]any{
				{"type": "body", "parameters": parameters},
			}
		}
		payload["type"] = "template"
		payload["template"] = template

	case models.MESSAGE_TYPE_IMAGE, models.MESSAGE_TYPE_DOCUMENT, models.MESSAGE_TYPE_VIDEO, models.MESSAGE_TYPE_AUDIO:
		media := map[string]any{"link": req.MediaURL}
		if req.Caption != "" && req.MessageType != models.MESSAGE_TYPE_AUDIO {
			media["caption"] = req.Caption
		}
		payload["type"] = req.MessageType
		payload[req.MessageType] = media

	default:
		return nil, fmt.Errorf("whatsapp cannot send message type %q", req.MessageType)
	}

	return payload, nil
}
