package platforms

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"socialhub/models"
)

type MessengerAdapter struct{}

func (MessengerAdapter) Platform() string { return models.PLATFORM_MESSENGER }

// messagingEnvelope covers both Messenger ("page") and Instagram
// ("instagram") webhooks, which share the entry[].messaging[] shape.
type messagingEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"`
		Time      int64  `json:"time"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Recipient struct {
				ID string `json:"id"`
			} `json:"recipient"`
			Timestamp int64 `json:"timestamp"`
			Message   *struct {
				MID         string `json:"mid"`
				Text        string `json:"text"`
				IsEcho      bool   `json:"is_echo"`
				Attachments []struct {
					Type    string `json:"type"`
					Payload struct {
						URL string `json:"url"`
					} `json:"payload"`
				} `json:"attachments"`
				ReplyTo *struct {
					Story *struct {
						ID  string `json:"id"`
						URL string `json:"url"`
					} `json:"story"`
				} `json:"reply_to"`
			} `json:"message"`
			Delivery *struct {
				MIDs []string `json:"mids"`
			} `json:"delivery"`
		} `json:"messaging"`
	} `json:"entry"`
}

func (a MessengerAdapter) ParseInbound(payload []byte) ([]InboundEvent, error) {
	return parseMessagingEnvelope(payload, false)
}

// parseMessagingEnvelope normalizes a Send-API-family webhook. The entry id
// is the routing key (page id, or IG account id on the instagram object).
// Echoes of our own sends are dropped; deliveries advance message status.
func parseMessagingEnvelope(payload []byte, instagram bool) ([]InboundEvent, error) {
	var envelope messagingEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}

	platform := models.PLATFORM_MESSENGER
	if instagram {
		platform = models.PLATFORM_INSTAGRAM
	}
	_ = platform

	var events []InboundEvent
	for _, entry := range envelope.Entry {
		ev := InboundEvent{RoutingKey: entry.ID}

		for _, item := range entry.Messaging {
			if item.Delivery != nil {
				for _, mid := range item.Delivery.MIDs {
					ev.Statuses = append(ev.Statuses, StatusUpdate{
						ExternalID: mid,
						Status:     models.MESSAGE_STATUS_DELIVERED,
					})
				}
			}
			if item.Message == nil || item.Message.IsEcho {
				continue
			}

			im := InboundMessage{
				ExternalID: item.Message.MID,
				SenderID:   item.Sender.ID,
				Text:       item.Message.Text,
				Timestamp:  parseUnixMillis(item.Timestamp),
			}

			switch {
			case instagram && item.Message.ReplyTo != nil && item.Message.ReplyTo.Story != nil:
				im.Type = models.MESSAGE_TYPE_STORY_REPLY
				im.MediaURL = item.Message.ReplyTo.Story.URL
			case len(item.Message.Attachments) > 0:
				att := item.Message.Attachments[0]
				im.Type = attachmentType(att.Type)
				im.MediaURL = att.Payload.URL
			case item.Message.Text != "":
				im.Type = models.MESSAGE_TYPE_TEXT
			}

			ev.Messages = append(ev.Messages, im)
		}

		events = append(events, ev)
	}
	return events, nil
}

func attachmentType(t string) string {
	switch strings.ToLower(t) {
	case "image":
		return models.MESSAGE_TYPE_IMAGE
	case "video":
		return models.MESSAGE_TYPE_VIDEO
	case "audio":
		return models.MESSAGE_TYPE_AUDIO
	case "file":
		return models.MESSAGE_TYPE_DOCUMENT
	case "sticker":
		return models.MESSAGE_TYPE_STICKER
	}
	return ""
}

func parseUnixMillis(ms int64) time.Time {
	if ms > 0 {
		return time.Unix(ms/1000, (ms%1000)*int64(time.Millisecond))
	}
	return time.Now()
}

// BuildPayload constructs a PSID-addressed Send API payload.
func (a MessengerAdapter) BuildPayload(req SendRequest) (map[string]any, error) {
	return buildSendAPIPayload(a.Platform(), req)
}

func buildSendAPIPayload(platform string, req SendRequest) (map[string]any, error) {
	payload := map[string]any{
		"recipient":      map[string]any{"id": req.RecipientID},
		"messaging_type": "RESPONSE",
	}

	switch req.MessageType {
	case models.MESSAGE_TYPE_TEXT:
		payload["message"] = map[string]any{"text": req.Content}

	case models.MESSAGE_TYPE_IMAGE, models.MESSAGE_TYPE_DOCUMENT, models.MESSAGE_TYPE_VIDEO, models.MESSAGE_TYPE_AUDIO:
		attachment := map[string]any{
			"type":    sendAPIAttachmentType(req.MessageType),
			"payload": map[string]any{"url": req.MediaURL, "is_reusable": false},
		}
		payload["message"] = map[string]any{"attachment": attachment}

	case models.MESSAGE_TYPE_TEMPLATE:
		return nil, fmt.Errorf("%s does not support template messages", platform)

	default:
		return nil, fmt.Errorf("%s cannot send message type %q", platform, req.MessageType)
	}

	return payload, nil
}

func sendAPIAttachmentType(messageType string) string {
	if messageType == models.MESSAGE_TYPE_DOCUMENT {
		return "file"
	}
	return messageType
}
