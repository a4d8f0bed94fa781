package tools

import (
	"context"
	"fmt"
	"strings"
)

// MessengerClient sends through the Messenger Send API using a page-scoped
// token. Instagram Direct reuses the same API, addressed by IGSID.
type MessengerClient struct {
	PageAccessToken string
	ApiVersion      string
}

func (c MessengerClient) apiVersion() string {
	v := strings.TrimSpace(c.ApiVersion)
	if v == "" {
		v = DefaultApiVersion
	}
	return v
}

// SendMessage posts a prebuilt payload to /me/messages and returns the
// provider message id.
func (c MessengerClient) SendMessage(ctx context.Context, payload map[string]any) (string, error) {
	url := fmt.Sprintf("%s/%s/me/messages", GraphBaseURL(), c.apiVersion())
	var out struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := graphPost(ctx, url, c.PageAccessToken, payload, &out); err != nil {
		return "", err
	}
	if out.MessageID == "" {
		return "", fmt.Errorf("messenger send: response carried no message id")
	}
	return out.MessageID, nil
}

// SubscribePage subscribes the app to the page's messaging webhook fields.
func (c MessengerClient) SubscribePage(ctx context.Context, pageID string) error {
	if strings.TrimSpace(pageID) == "" {
		return fmt.Errorf("page_id is required")
	}
	url := fmt.Sprintf("%s/%s/%s/subscribed_apps", GraphBaseURL(), c.apiVersion(), strings.TrimSpace(pageID))
	return graphPost(ctx, url, c.PageAccessToken, map[string]any{
		"subscribed_fields": "messages,messaging_postbacks,message_deliveries,message_reads",
	}, nil)
}
