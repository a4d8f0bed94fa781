package platforms

import (
	"socialhub/models"
)

// InstagramAdapter handles Instagram Direct, which reuses Messenger's Send
// API shape addressed by IGSID, plus the story_reply inbound kind.
type InstagramAdapter struct{}

func (InstagramAdapter) Platform() string { return models.PLATFORM_INSTAGRAM }

func (a InstagramAdapter) ParseInbound(payload []byte) ([]InboundEvent, error) {
	return parseMessagingEnvelope(payload, true)
}

func (a InstagramAdapter) BuildPayload(req SendRequest) (map[string]any, error) {
	return buildSendAPIPayload(a.Platform(), req)
}
