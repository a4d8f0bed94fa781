package processors

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"

	"socialhub/config"
	"socialhub/models"
	"socialhub/platforms"
	"socialhub/tools"
)

/************************************************
/**** MARK: ITEM OUTCOMES ****/
/************************************************/
const OUTCOME_OK = "ok"
const OUTCOME_SKIPPED = "skipped"
const OUTCOME_FAILED = "failed"

// ItemResult is the per-item outcome of webhook processing, aggregated for
// logging and fully decoupled from the HTTP response (which is always 200
// once routing succeeded).
type ItemResult struct {
	Outcome   string
	Reason    string
	MessageID int64
}

// Summarize counts outcomes for a one-line log.
func Summarize(results []ItemResult) logrus.Fields {
	fields := logrus.Fields{"ok": 0, "skipped": 0, "failed": 0}
	for _, r := range results {
		switch r.Outcome {
		case OUTCOME_OK:
			fields["ok"] = fields["ok"].(int) + 1
		case OUTCOME_SKIPPED:
			fields["skipped"] = fields["skipped"].(int) + 1
		case OUTCOME_FAILED:
			fields["failed"] = fields["failed"].(int) + 1
		}
	}
	return fields
}

// ProcessEvent routes a persisted webhook event to its platform processor.
// Unrecognized objects are a silent no-op. A malformed item never aborts
// its siblings; the whole batch always runs to the end.
func ProcessEvent(ctx context.Context, database *gorm.DB, event *models.WebhookEvent) []ItemResult {
	adapter, ok := platforms.ForObject(event.Object)
	if !ok {
		return nil
	}

	inboundEvents, err := adapter.ParseInbound([]byte(event.Payload))
	if err != nil {
		return []ItemResult{{Outcome: OUTCOME_FAILED, Reason: "malformed payload: " + err.Error()}}
	}

	var results []ItemResult
	for _, ev := range inboundEvents {
		conn, err := models.FindConnectionByRoutingKey(database, adapter.Platform(), ev.RoutingKey)
		if err != nil {
			// connection not provisioned on this side; not an error
			reason := "connection not provisioned"
			if !gorm.IsRecordNotFoundError(err) {
				reason = "connection lookup: " + err.Error()
			}
			for range ev.Messages {
				results = append(results, ItemResult{Outcome: OUTCOME_SKIPPED, Reason: reason})
			}
			continue
		}

		for _, status := range ev.Statuses {
			results = append(results, applyStatus(database, adapter.Platform(), status))
		}
		for _, m := range ev.Messages {
			results = append(results, processMessage(ctx, database, conn, m))
		}
	}
	return results
}

// processMessage runs the common inbound pipeline: resolve-or-create the
// conversation, resolve media, insert with dedup, bump counters and the
// WhatsApp session window.
func processMessage(ctx context.Context, database *gorm.DB, conn *models.Connection, m platforms.InboundMessage) ItemResult {
	logger := config.GetLogger()

	if m.Type == "" {
		return ItemResult{Outcome: OUTCOME_SKIPPED, Reason: "unsupported message type"}
	}

	cv, created, err := models.FindOrCreateConversation(database, conn, m.SenderID, m.SenderName)
	if err != nil {
		config.LogError(logger, "processors", "processMessage", "find or create conversation", m.SenderID, err)
		return ItemResult{Outcome: OUTCOME_FAILED, Reason: "conversation: " + err.Error()}
	}
	if created && conn.Platform == models.PLATFORM_WHATSAPP {
		if contactID := models.MatchContactByPhoneSuffix(database, conn.WorkspaceID, m.SenderID); contactID != nil {
			_ = database.Model(&models.Conversation{}).Where("id = ?", cv.ID).
				Update("contact_id", *contactID).Error
			cv.ContactID = contactID
		}
	}

	mediaURL := m.MediaURL
	if mediaURL == "" && m.MediaID != "" {
		wa := tools.WhatsAppClient{
			AccessToken:   conn.AccessToken,
			ApiVersion:    config.Get().MetaApiVersion,
			PhoneNumberID: conn.PlatformAccountID,
		}
		url, err := wa.ResolveMediaURL(ctx, m.MediaID)
		if err != nil {
			// media stays unresolved; the message row is still inserted
			config.LogError(logger, "processors", "processMessage", "resolve media url", m.MediaID, err)
		} else {
			mediaURL = url
		}
	}

	externalID := m.ExternalID
	sentAt := m.Timestamp
	msg := models.Message{
		ConversationID: cv.ID,
		Platform:       conn.Platform,
		Direction:      models.MESSAGE_DIRECTION_INBOUND,
		Type:           m.Type,
		Content:        m.Text,
		MediaID:        m.MediaID,
		MediaURL:       mediaURL,
		Caption:        m.Caption,
		Status:         models.MESSAGE_STATUS_RECEIVED,
		ExternalID:     &externalID,
		SentAt:         &sentAt,
	}

	inserted, err := models.InsertMessageDedup(database, &msg)
	if err != nil {
		config.LogError(logger, "processors", "processMessage", "insert message", m.ExternalID, err)
		return ItemResult{Outcome: OUTCOME_FAILED, Reason: "insert: " + err.Error()}
	}
	if !inserted {
		return ItemResult{Outcome: OUTCOME_SKIPPED, Reason: "duplicate delivery", MessageID: msg.ID}
	}

	if err := cv.ApplyInbound(database, messagePreview(msg), time.Now()); err != nil {
		config.LogError(logger, "processors", "processMessage", "update conversation", cv.ID, err)
	}
	return ItemResult{Outcome: OUTCOME_OK, MessageID: msg.ID}
}

func applyStatus(database *gorm.DB, platform string, status platforms.StatusUpdate) ItemResult {
	if status.Status == "" {
		return ItemResult{Outcome: OUTCOME_SKIPPED, Reason: "unknown status"}
	}
	err := models.AdvanceMessageStatus(database, platform, status.ExternalID, status.Status, status.ErrorCode, status.ErrorMessage)
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return ItemResult{Outcome: OUTCOME_SKIPPED, Reason: "status for unknown message"}
		}
		return ItemResult{Outcome: OUTCOME_FAILED, Reason: "status: " + err.Error()}
	}
	return ItemResult{Outcome: OUTCOME_OK}
}

// messagePreview is the one-liner stored on the conversation.
func messagePreview(m models.Message) string {
	if m.Content != "" {
		return m.Content
	}
	if m.Caption != "" {
		return m.Caption
	}
	return "[" + m.Type + "]"
}
