package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// SESSION_WINDOW is WhatsApp's customer service window: free-form replies
// are only allowed within 24h of the customer's last inbound message.
const SESSION_WINDOW = 24 * time.Hour

// Conversation is the ongoing thread between a connection and one external
// participant. Created lazily on the first message in either direction and
// never deleted.
type Conversation struct {
	ID                     int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ConnectionID           int64  `gorm:"column:connection_id;not null;unique_index:idx_conversations_identity" json:"connection_id"`
	Platform               string `gorm:"not null;index" json:"platform"`
	PlatformConversationID string `gorm:"column:platform_conversation_id;not null;unique_index:idx_conversations_identity" json:"platform_conversation_id"`
	ParticipantName        string `gorm:"column:participant_name" json:"participant_name"`
	// ContactID is a best-effort link to the CRM contact matched by phone
	// suffix on first contact (WhatsApp only).
	ContactID     *int64     `gorm:"column:contact_id" json:"contact_id,omitempty"`
	LastInboundAt *time.Time `gorm:"column:last_inbound_at" json:"last_inbound_at"`
	// SessionExpiresAt = last inbound + 24h. Only ever extends, never
	// shortens. Nil until the first inbound message.
	SessionExpiresAt   *time.Time `gorm:"column:session_expires_at" json:"session_expires_at"`
	LastMessageAt      *time.Time `gorm:"column:last_message_at" json:"last_message_at"`
	LastMessagePreview string     `gorm:"column:last_message_preview" json:"last_message_preview"`
	MessageCount       int        `gorm:"column:message_count;not null;default:0" json:"message_count"`
	UnreadCount        int        `gorm:"column:unread_count;not null;default:0" json:"unread_count"`
	CreatedAt          *time.Time `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
}

// SessionActive reports whether a free-form reply is still inside the 24h
// window at the given instant. Non-WhatsApp platforms have no window.
func (cv Conversation) SessionActive(now time.Time) bool {
	if cv.Platform != PLATFORM_WHATSAPP {
		return true
	}
	if cv.SessionExpiresAt == nil {
		return false
	}
	return !now.After(*cv.SessionExpiresAt)
}

// RequiresTemplate is the derived state the UI and the dispatcher consult.
// Recomputed at read time, never stored.
func (cv Conversation) RequiresTemplate(now time.Time) bool {
	if cv.Platform != PLATFORM_WHATSAPP {
		return false
	}
	return !cv.SessionActive(now)
}

// FindOrCreateConversation resolves the thread for (connection, participant),
// creating it on first contact. Two concurrent first-contact events must not
// create two rows: the unique composite index arbitrates, and the loser of
// the insert race re-reads the winner.
func FindOrCreateConversation(database *gorm.DB, conn *Connection, participantID string, participantName string) (*Conversation, bool, error) {
	var cv Conversation
	err := database.
		Where("connection_id = ? AND platform_conversation_id = ?", conn.ID, participantID).
		First(&cv).Error
	if err == nil {
		if cv.ParticipantName == "" && participantName != "" {
			_ = database.Model(&Conversation{}).Where("id = ?", cv.ID).
				Update("participant_name", participantName).Error
			cv.ParticipantName = participantName
		}
		return &cv, false, nil
	}
	if !gorm.IsRecordNotFoundError(err) {
		return nil, false, err
	}

	cv = Conversation{
		ConnectionID:           conn.ID,
		Platform:               conn.Platform,
		PlatformConversationID: participantID,
		ParticipantName:        participantName,
	}
	if createErr := database.Create(&cv).Error; createErr != nil {
		if err := database.
			Where("connection_id = ? AND platform_conversation_id = ?", conn.ID, participantID).
			First(&cv).Error; err != nil {
			return nil, false, createErr
		}
		return &cv, false, nil
	}
	return &cv, true, nil
}

// ApplyInbound records an inbound message on the thread: preview, counters
// and, for WhatsApp, the session window reset. The expiry only moves
// forward so a replayed older event can never shorten the window.
func (cv *Conversation) ApplyInbound(database *gorm.DB, preview string, now time.Time) error {
	updates := map[string]any{
		"last_inbound_at":      now,
		"last_message_at":      now,
		"last_message_preview": preview,
		"message_count":        gorm.Expr("message_count + 1"),
		"unread_count":         gorm.Expr("unread_count + 1"),
	}
	if cv.Platform == PLATFORM_WHATSAPP {
		expiry := now.Add(SESSION_WINDOW)
		if cv.SessionExpiresAt == nil || expiry.After(*cv.SessionExpiresAt) {
			updates["session_expires_at"] = expiry
			cv.SessionExpiresAt = &expiry
		}
		cv.LastInboundAt = &now
	}
	return database.Model(&Conversation{}).Where("id = ?", cv.ID).Updates(updates).Error
}

// ApplyOutbound records an outbound message on the thread. Outbound traffic
// never touches the session window.
func (cv *Conversation) ApplyOutbound(database *gorm.DB, preview string, now time.Time) error {
	return database.Model(&Conversation{}).Where("id = ?", cv.ID).Updates(map[string]any{
		"last_message_at":      now,
		"last_message_preview": preview,
		"message_count":        gorm.Expr("message_count + 1"),
	}).Error
}
