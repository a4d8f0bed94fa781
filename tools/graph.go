package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const DefaultApiVersion = "v24.0"

var httpClient = &http.Client{Timeout: 30 * time.Second}

// GraphBaseURL returns the Graph API host. Overridable through the
// environment so tests can point the clients at a local server.
func GraphBaseURL() string {
	if v := strings.TrimSpace(os.Getenv("GRAPH_API_BASE_URL")); v != "" {
		return strings.TrimSuffix(v, "/")
	}
	return "https://graph.facebook.com"
}

// GraphError is a Graph API rejection, decoded from Meta's error envelope.
// Carried verbatim up to the caller: provider semantics (expired session
// window, unapproved template, bad recipient) live in Code/Subcode/Message.
type GraphError struct {
	StatusCode int    `json:"status_code"`
	Code       int    `json:"code"`
	Subcode    int    `json:"subcode,omitempty"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
	FbtraceID  string `json:"fbtrace_id,omitempty"`
}

func (e GraphError) Error() string {
	return fmt.Sprintf("graph api error: status=%d code=%d message=%s", e.StatusCode, e.Code, e.Message)
}

func parseGraphError(statusCode int, body []byte) error {
	var envelope struct {
		Error struct {
			Message   string `json:"message"`
			Type      string `json:"type"`
			Code      int    `json:"code"`
			Subcode   int    `json:"error_subcode"`
			FbtraceID string `json:"fbtrace_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return GraphError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	}
	return GraphError{
		StatusCode: statusCode,
		Code:       envelope.Error.Code,
		Subcode:    envelope.Error.Subcode,
		Type:       envelope.Error.Type,
		Message:    envelope.Error.Message,
		FbtraceID:  envelope.Error.FbtraceID,
	}
}

func graphGet(ctx context.Context, url string, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	return doGraph(req, out)
}

func graphPost(ctx context.Context, url string, token string, body any, out any) error {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	req.Header.Set("Content-Type", "application/json")
	return doGraph(req, out)
}

func doGraph(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return parseGraphError(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode graph response: %w", err)
		}
	}
	return nil
}
