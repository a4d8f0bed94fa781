package tools

import (
	"context"
	"fmt"
	"strings"
)

// WhatsAppClient is a thin client for WhatsApp Cloud API calls scoped to one
// connection's phone number.
type WhatsAppClient struct {
	AccessToken   string
	ApiVersion    string // e.g. v24.0
	PhoneNumberID string
}

func (c WhatsAppClient) apiVersion() string {
	v := strings.TrimSpace(c.ApiVersion)
	if v == "" {
		v = DefaultApiVersion
	}
	return v
}

func (c WhatsAppClient) url(id string, path string) string {
	u := fmt.Sprintf("%s/%s/%s", GraphBaseURL(), c.apiVersion(), strings.TrimSpace(id))
	if path != "" {
		u += "/" + strings.TrimPrefix(path, "/")
	}
	return u
}

// SendMessage posts a prebuilt payload to /{phone_number_id}/messages and
// returns the provider message id.
func (c WhatsAppClient) SendMessage(ctx context.Context, payload map[string]any) (string, error) {
	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := graphPost(ctx, c.url(c.PhoneNumberID, "messages"), c.AccessToken, payload, &out); err != nil {
		return "", err
	}
	if len(out.Messages) == 0 {
		return "", fmt.Errorf("whatsapp send: response carried no message id")
	}
	return out.Messages[0].ID, nil
}

// ResolveMediaURL performs the Cloud API's two-step media indirection:
// inbound payloads carry a media id, and a GET on that id with the
// connection's token returns a short-lived fetchable URL.
func (c WhatsAppClient) ResolveMediaURL(ctx context.Context, mediaID string) (string, error) {
	var out struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := graphGet(ctx, c.url(mediaID, ""), c.AccessToken, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("media %s: response carried no url", mediaID)
	}
	return out.URL, nil
}

// RemoteTemplate is a template definition as returned by
// /{waba_id}/message_templates.
type RemoteTemplate struct {
	Name       string `json:"name"`
	Language   string `json:"language"`
	Status     string `json:"status"`
	Category   string `json:"category"`
	Components []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"components"`
}

// BodyText returns the BODY component text of the template, empty when the
// template has none.
func (t RemoteTemplate) BodyText() string {
	for _, comp := range t.Components {
		if strings.EqualFold(comp.Type, "BODY") {
			return comp.Text
		}
	}
	return ""
}

// ListTemplates fetches the WABA's registered templates.
func (c WhatsAppClient) ListTemplates(ctx context.Context, wabaID string) ([]RemoteTemplate, error) {
	var out struct {
		Data []RemoteTemplate `json:"data"`
	}
	url := c.url(wabaID, "message_templates") + "?fields=name,language,status,category,components&limit=100"
	if err := graphGet(ctx, url, c.AccessToken, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SubscribeWaba subscribes the app to webhook updates for this WABA.
func (c WhatsAppClient) SubscribeWaba(ctx context.Context, wabaID string) error {
	if strings.TrimSpace(wabaID) == "" {
		return fmt.Errorf("waba_id is required")
	}
	return graphPost(ctx, c.url(wabaID, "subscribed_apps"), c.AccessToken, nil, nil)
}
