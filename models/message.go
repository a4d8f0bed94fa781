package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: MESSAGE DIRECTION ****/
/************************************************/
const MESSAGE_DIRECTION_INBOUND = "inbound"
const MESSAGE_DIRECTION_OUTBOUND = "outbound"

/************************************************
/**** MARK: MESSAGE TYPES ****/
/************************************************/
const MESSAGE_TYPE_TEXT = "text"
const MESSAGE_TYPE_TEMPLATE = "template"
const MESSAGE_TYPE_IMAGE = "image"
const MESSAGE_TYPE_DOCUMENT = "document"
const MESSAGE_TYPE_VIDEO = "video"
const MESSAGE_TYPE_AUDIO = "audio"
const MESSAGE_TYPE_STICKER = "sticker"
const MESSAGE_TYPE_REACTION = "reaction"
const MESSAGE_TYPE_STORY_REPLY = "story_reply"

/************************************************
/**** MARK: MESSAGE STATUS ****/
/************************************************/
const MESSAGE_STATUS_RECEIVED = "received"
const MESSAGE_STATUS_SENT = "sent"
const MESSAGE_STATUS_DELIVERED = "delivered"
const MESSAGE_STATUS_READ = "read"
const MESSAGE_STATUS_FAILED = "failed"

// statusRank orders the forward-only delivery progression for outbound
// messages. "failed" is terminal and handled separately.
var statusRank = map[string]int{
	MESSAGE_STATUS_SENT:      1,
	MESSAGE_STATUS_DELIVERED: 2,
	MESSAGE_STATUS_READ:      3,
}

// Message is one inbound or outbound item on a conversation. Content is
// immutable after insert; only status and the delivery error fields move.
type Message struct {
	ID             int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ConversationID int64  `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	Platform       string `gorm:"not null;unique_index:idx_messages_external" json:"platform"`
	Direction      string `gorm:"not null" json:"direction"`
	Type           string `gorm:"not null" json:"type"`
	Content        string `gorm:"type:text" json:"content"`
	MediaID        string `gorm:"column:media_id" json:"media_id,omitempty"`
	MediaURL       string `gorm:"column:media_url;type:text" json:"media_url,omitempty"`
	Caption        string `gorm:"type:text" json:"caption,omitempty"`
	Status         string `gorm:"not null" json:"status"`
	// ExternalID is the provider-side message id, the dedup key for
	// at-least-once webhook delivery. Nullable so failed outbound sends
	// (which never got a provider id) do not collide on the unique index.
	ExternalID   *string    `gorm:"column:external_id;unique_index:idx_messages_external" json:"external_id,omitempty"`
	ErrorCode    string     `gorm:"column:error_code" json:"error_code,omitempty"`
	ErrorMessage string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	SentAt       *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// InsertMessageDedup inserts the message unless a row with the same
// (platform, external_id) already exists. Returns false when the message was
// a redelivery; m is then loaded with the existing row.
func InsertMessageDedup(database *gorm.DB, m *Message) (bool, error) {
	if m.ExternalID != nil {
		var existing Message
		err := database.
			Where("platform = ? AND external_id = ?", m.Platform, *m.ExternalID).
			First(&existing).Error
		if err == nil {
			*m = existing
			return false, nil
		}
		if !gorm.IsRecordNotFoundError(err) {
			return false, err
		}
	}

	if err := database.Create(m).Error; err != nil {
		// concurrent redelivery: the unique index won, read the winner
		if m.ExternalID != nil {
			var existing Message
			if err2 := database.
				Where("platform = ? AND external_id = ?", m.Platform, *m.ExternalID).
				First(&existing).Error; err2 == nil {
				*m = existing
				return false, nil
			}
		}
		return false, err
	}
	return true, nil
}

// AdvanceMessageStatus applies a delivery-status callback to the message
// matched by external id. Status only moves forward (sent -> delivered ->
// read); "failed" is terminal and keeps the provider error attached.
func AdvanceMessageStatus(database *gorm.DB, platform string, externalID string, status string, errorCode string, errorMessage string) error {
	var m Message
	if err := database.
		Where("platform = ? AND external_id = ?", platform, externalID).
		First(&m).Error; err != nil {
		return err
	}

	if m.Status == MESSAGE_STATUS_FAILED {
		return nil
	}

	updates := map[string]any{}
	if status == MESSAGE_STATUS_FAILED {
		updates["status"] = MESSAGE_STATUS_FAILED
		updates["error_code"] = errorCode
		updates["error_message"] = errorMessage
	} else {
		if statusRank[status] <= statusRank[m.Status] {
			return nil
		}
		updates["status"] = status
	}
	return database.Model(&Message{}).Where("id = ?", m.ID).Updates(updates).Error
}
