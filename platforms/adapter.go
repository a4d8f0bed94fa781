package platforms

import (
	"fmt"
	"time"

	"socialhub/models"
)

// InboundMessage is one provider message normalized into the canonical
// shape, before persistence. Type is empty when the provider item is a kind
// we do not ingest; the processor records those as skips.
type InboundMessage struct {
	ExternalID string
	SenderID   string
	SenderName string
	Type       string
	Text       string
	// MediaID is set for WhatsApp media, which needs the two-step URL
	// resolution; MediaURL is set when the provider sends a URL directly.
	MediaID   string
	MediaURL  string
	Caption   string
	Timestamp time.Time
}

// StatusUpdate is a delivery-status callback for an outbound message.
type StatusUpdate struct {
	ExternalID   string
	Status       string
	ErrorCode    string
	ErrorMessage string
}

// InboundEvent groups the items of one webhook entry under the routing key
// that resolves its connection.
type InboundEvent struct {
	RoutingKey string
	Messages   []InboundMessage
	Statuses   []StatusUpdate
}

// SendRequest is the platform-independent outbound request the dispatcher
// hands to an adapter. TemplateParams is already ordered positionally.
type SendRequest struct {
	RecipientID      string
	MessageType      string
	Content          string
	TemplateName     string
	TemplateLanguage string
	TemplateParams   []string
	MediaURL         string
	Caption          string
}

// Adapter reconciles one provider's wire protocol with the internal model.
type Adapter interface {
	Platform() string
	// ParseInbound normalizes a raw webhook body into events keyed by
	// routing key. Malformed bodies error; unknown item kinds do not.
	ParseInbound(payload []byte) ([]InboundEvent, error)
	// BuildPayload constructs the provider send payload. Returns an error
	// for requests the platform cannot express (no side effect).
	BuildPayload(req SendRequest) (map[string]any, error)
}

// ForPlatform selects the adapter for a connection's platform tag.
func ForPlatform(platform string) (Adapter, error) {
	switch platform {
	case models.PLATFORM_WHATSAPP:
		return WhatsAppAdapter{}, nil
	case models.PLATFORM_MESSENGER:
		return MessengerAdapter{}, nil
	case models.PLATFORM_INSTAGRAM:
		return InstagramAdapter{}, nil
	}
	return nil, fmt.Errorf("unknown platform: %s", platform)
}

// ForObject routes a webhook by its top-level object field. Unrecognized
// objects are a silent no-op for the caller.
func ForObject(object string) (Adapter, bool) {
	switch object {
	case "whatsapp_business_account":
		return WhatsAppAdapter{}, true
	case "page":
		return MessengerAdapter{}, true
	case "instagram":
		return InstagramAdapter{}, true
	}
	return nil, false
}
