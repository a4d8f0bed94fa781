package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// WebhookEvent is the append-only audit log of raw provider deliveries.
// Rows are persisted before any processing so a crash mid-processing can be
// replayed. Nothing is ever mutated after insert except the processed flag.
type WebhookEvent struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Object         string     `gorm:"not null;index" json:"object"`
	Payload        string     `gorm:"type:text;not null" json:"payload"`
	SignatureValid bool       `gorm:"column:signature_valid" json:"signature_valid"`
	Processed      bool       `gorm:"not null;default:false;index" json:"processed"`
	ProcessedAt    *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt      *time.Time `json:"created_at"`
}

func (e *WebhookEvent) MarkProcessed(database *gorm.DB) error {
	now := time.Now()
	e.Processed = true
	e.ProcessedAt = &now
	return database.Model(&WebhookEvent{}).Where("id = ?", e.ID).Updates(map[string]any{
		"processed":    true,
		"processed_at": &now,
	}).Error
}

// ClaimWebhookEvent flips the processed flag if and only if it is still
// false, so concurrent replay workers never double-process an event.
func ClaimWebhookEvent(database *gorm.DB, id int64) (bool, error) {
	res := database.Model(&WebhookEvent{}).
		Where("id = ? AND processed = ?", id, false).
		Updates(map[string]any{"processed": true, "processed_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
