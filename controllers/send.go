package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"socialhub/config"
	dbpkg "socialhub/db"
	"socialhub/models"
	"socialhub/platforms"
	"socialhub/tools"
)

type sendMessageRequest struct {
	ConnectionID      int64             `json:"connectionId"`
	ConversationID    *int64            `json:"conversationId"`
	RecipientID       string            `json:"recipientId"`
	MessageType       string            `json:"messageType"`
	Content           string            `json:"content"`
	TemplateName      string            `json:"templateName"`
	TemplateLanguage  string            `json:"templateLanguage"`
	TemplateVariables map[string]string `json:"templateVariables"`
	MediaURL          string            `json:"mediaUrl"`
	Caption           string            `json:"caption"`
}

// validate enforces the type-specific required fields. Rejections here have
// no side effect.
func (req sendMessageRequest) validate() string {
	if req.ConnectionID <= 0 {
		return "connectionId is required"
	}
	if strings.TrimSpace(req.RecipientID) == "" {
		return "recipientId is required"
	}
	switch req.MessageType {
	case models.MESSAGE_TYPE_TEXT:
		if strings.TrimSpace(req.Content) == "" {
			return "content is required for text messages"
		}
	case models.MESSAGE_TYPE_TEMPLATE:
		if strings.TrimSpace(req.TemplateName) == "" || strings.TrimSpace(req.TemplateLanguage) == "" {
			return "templateName and templateLanguage are required for template messages"
		}
	case models.MESSAGE_TYPE_IMAGE, models.MESSAGE_TYPE_DOCUMENT, models.MESSAGE_TYPE_VIDEO, models.MESSAGE_TYPE_AUDIO:
		if strings.TrimSpace(req.MediaURL) == "" {
			return "mediaUrl is required for media messages"
		}
	case "":
		return "messageType is required"
	default:
		return "unsupported messageType: " + req.MessageType
	}
	return ""
}

// POST /send-social-message
// The outbound dispatcher: builds the platform payload, makes one
// synchronous provider call (no retries) and persists the result either
// way. A provider rejection becomes a failed Message plus a structured 400.
func SendSocialMessage(c *gin.Context) {
	logger := config.GetLogger()

	var req sendMessageRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		RespondError(c, msg, http.StatusBadRequest)
		return
	}

	database := dbpkg.DBInstance(c)
	if database == nil {
		RespondError(c, "db not configured in context", http.StatusInternalServerError)
		return
	}

	var conn models.Connection
	if err := database.First(&conn, req.ConnectionID).Error; err != nil {
		RespondError(c, "connection not found", http.StatusNotFound)
		return
	}
	if conn.Status != models.CONNECTION_STATUS_ACTIVE {
		RespondError(c, "connection is disconnected", http.StatusBadRequest)
		return
	}

	adapter, err := platforms.ForPlatform(conn.Platform)
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	// Template registry consult: locally known unapproved templates are
	// rejected up front; unknown ones go through, the provider decides.
	var registered *models.Template
	if req.MessageType == models.MESSAGE_TYPE_TEMPLATE {
		registered, err = models.FindTemplate(database, conn.Platform, req.TemplateName, req.TemplateLanguage)
		if err != nil {
			RespondError(c, "template lookup failed", http.StatusInternalServerError)
			return
		}
		if registered != nil && registered.Status != models.TEMPLATE_STATUS_APPROVED {
			RespondError(c, "template is not approved", http.StatusBadRequest)
			return
		}
	}

	cv, err := resolveConversation(database, &conn, req)
	if err != nil {
		RespondError(c, "failed to resolve conversation", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	// Re-check the session window at send time rather than trusting the UI
	// snapshot. The provider stays authoritative (an inbound may have
	// re-opened the window since our read), so an expired window is
	// surfaced in the logs but does not block the call.
	if conn.Platform == models.PLATFORM_WHATSAPP &&
		req.MessageType != models.MESSAGE_TYPE_TEMPLATE &&
		cv.RequiresTemplate(now) {
		logger.WithField("conversation_id", cv.ID).
			Warn("session window expired; free-form send will likely be rejected by the provider")
	}

	payload, err := adapter.BuildPayload(platforms.SendRequest{
		RecipientID:      req.RecipientID,
		MessageType:      req.MessageType,
		Content:          req.Content,
		TemplateName:     req.TemplateName,
		TemplateLanguage: req.TemplateLanguage,
		TemplateParams:   models.OrderedParameters(registered, req.TemplateVariables),
		MediaURL:         req.MediaURL,
		Caption:          req.Caption,
	})
	if err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	externalID, sendErr := dispatch(c, &conn, payload)

	msg := models.Message{
		ConversationID: cv.ID,
		Platform:       conn.Platform,
		Direction:      models.MESSAGE_DIRECTION_OUTBOUND,
		Type:           req.MessageType,
		Content:        outboundContent(req),
		MediaURL:       req.MediaURL,
		Caption:        req.Caption,
		SentAt:         &now,
	}

	if sendErr != nil {
		msg.Status = models.MESSAGE_STATUS_FAILED
		if graphErr, ok := sendErr.(tools.GraphError); ok {
			if graphErr.Code != 0 {
				msg.ErrorCode = strconv.Itoa(graphErr.Code)
			}
			msg.ErrorMessage = graphErr.Message
		} else {
			msg.ErrorMessage = sendErr.Error()
		}
		if err := database.Create(&msg).Error; err != nil {
			config.LogError(logger, "controllers", "SendSocialMessage", "persist failed message", cv.ID, err)
		}
		RespondErrorDetails(c, "provider rejected message", sendErr.Error(), http.StatusBadRequest)
		return
	}

	msg.Status = models.MESSAGE_STATUS_SENT
	msg.ExternalID = &externalID
	if _, err := models.InsertMessageDedup(database, &msg); err != nil {
		// provider accepted but the local write failed; log loudly, the
		// send itself cannot be undone
		config.LogError(logger, "controllers", "SendSocialMessage", "persist sent message", externalID, err)
		RespondError(c, "message sent but could not be persisted", http.StatusInternalServerError)
		return
	}
	if err := cv.ApplyOutbound(database, messagePreview(msg), now); err != nil {
		config.LogError(logger, "controllers", "SendSocialMessage", "update conversation", cv.ID, err)
	}

	RespondSuccess(c, gin.H{
		"success":        true,
		"messageId":      msg.ID,
		"conversationId": cv.ID,
		"message":        msg,
	})
}

// resolveConversation reuses the inbound find-or-create algorithm so
// outbound-initiated threads land on the same row a webhook would use.
func resolveConversation(database *gorm.DB, conn *models.Connection, req sendMessageRequest) (*models.Conversation, error) {
	if req.ConversationID != nil && *req.ConversationID > 0 {
		var cv models.Conversation
		if err := database.First(&cv, *req.ConversationID).Error; err == nil {
			return &cv, nil
		}
	}

	participantID := strings.TrimSpace(req.RecipientID)
	if conn.Platform == models.PLATFORM_WHATSAPP {
		if normalized, err := tools.NormalizeRecipientPhone(participantID); err == nil {
			participantID = normalized
		}
	}
	cv, _, err := models.FindOrCreateConversation(database, conn, participantID, "")
	return cv, err
}

func dispatch(c *gin.Context, conn *models.Connection, payload map[string]any) (string, error) {
	ctx := c.Request.Context()
	apiVersion := config.Get().MetaApiVersion

	if conn.Platform == models.PLATFORM_WHATSAPP {
		client := tools.WhatsAppClient{
			AccessToken:   conn.AccessToken,
			ApiVersion:    apiVersion,
			PhoneNumberID: conn.PlatformAccountID,
		}
		return client.SendMessage(ctx, payload)
	}

	client := tools.MessengerClient{PageAccessToken: conn.AccessToken, ApiVersion: apiVersion}
	return client.SendMessage(ctx, payload)
}

func outboundContent(req sendMessageRequest) string {
	if req.MessageType == models.MESSAGE_TYPE_TEMPLATE {
		return req.TemplateName
	}
	return req.Content
}

func messagePreview(m models.Message) string {
	if m.Content != "" {
		return m.Content
	}
	if m.Caption != "" {
		return m.Caption
	}
	return "[" + m.Type + "]"
}
