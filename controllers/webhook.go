package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"socialhub/config"
	dbpkg "socialhub/db"
	"socialhub/models"
	"socialhub/processors"
)

// verifyMetaSignature validates the request body against Meta's signature
// header: X-Hub-Signature-256: sha256=<hex>, HMAC-SHA256 over the raw body
// keyed by the app secret. When no secret is configured the check is
// skipped (dev only).
func verifyMetaSignature(c *gin.Context, rawBody []byte) (bool, string) {
	secret := strings.TrimSpace(config.Get().MetaAppSecret)
	if secret == "" {
		return true, "no app secret configured"
	}

	sig := strings.TrimSpace(c.GetHeader("X-Hub-Signature-256"))
	if sig == "" {
		return false, "missing X-Hub-Signature-256"
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return false, "invalid X-Hub-Signature-256 format"
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false, "invalid signature hex"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return false, "signature mismatch"
	}
	return true, ""
}

// GET /social-webhook
// Meta's subscription handshake: echo hub.challenge when the verify token
// matches.
func WebhookVerify(c *gin.Context) {
	verifyToken := config.Get().MetaVerifyToken
	if verifyToken == "" {
		RespondError(c, "META_VERIFY_TOKEN not set", http.StatusInternalServerError)
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) == 1 &&
		challenge != "" {
		c.String(http.StatusOK, "%s", challenge)
		return
	}

	RespondError(c, "forbidden", http.StatusForbidden)
}

// POST /social-webhook
// Persists the raw delivery before any processing, routes by the top-level
// object field and always answers 200 once routed, whatever the per-item
// outcomes, so the provider never enters a redelivery storm over our own
// processing problems.
func WebhookUpdate(c *gin.Context) {
	logger := config.GetLogger()

	raw, err := c.GetRawData()
	if err != nil {
		RespondError(c, "failed to read body", http.StatusBadRequest)
		return
	}

	if ok, reason := verifyMetaSignature(c, raw); !ok {
		RespondError(c, "invalid signature: "+reason, http.StatusUnauthorized)
		return
	}

	var probe struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		RespondError(c, "invalid json", http.StatusBadRequest)
		return
	}

	database := dbpkg.DBInstance(c)
	if database == nil {
		RespondError(c, "db not configured in context", http.StatusInternalServerError)
		return
	}

	event := models.WebhookEvent{
		Object:         probe.Object,
		Payload:        string(raw),
		SignatureValid: true,
	}
	if err := database.Create(&event).Error; err != nil {
		config.LogError(logger, "controllers", "WebhookUpdate", "persist webhook event", probe.Object, err)
		RespondError(c, "failed to persist event", http.StatusInternalServerError)
		return
	}

	results := processors.ProcessEvent(c.Request.Context(), database, &event)
	if err := event.MarkProcessed(database); err != nil {
		config.LogError(logger, "controllers", "WebhookUpdate", "mark processed", event.ID, err)
	}

	fields := processors.Summarize(results)
	fields["object"] = probe.Object
	fields["event_id"] = event.ID
	logger.WithFields(fields).Info("webhook processed")

	RespondSuccess(c, gin.H{"success": true})
}
