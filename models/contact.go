package models

import (
	"time"

	"github.com/jinzhu/gorm"

	"socialhub/tools"
)

// Contact mirrors the CRM contact store. This service only reads it, to
// best-effort link a new WhatsApp conversation to a known contact.
type Contact struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	WorkspaceID int64      `gorm:"column:workspace_id;not null;index" json:"workspace_id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// MatchContactByPhoneSuffix finds a workspace contact whose phone ends with
// the same digits as the WhatsApp sender id. Suffix matching tolerates the
// country-code and formatting differences between CRM input and wa_id.
// Returns nil when nothing matches; a miss is not an error.
func MatchContactByPhoneSuffix(database *gorm.DB, workspaceID int64, phone string) *int64 {
	digits := tools.DigitsOnly(phone)
	if len(digits) < 8 {
		return nil
	}
	suffix := digits[len(digits)-8:]

	var contact Contact
	err := database.
		Where("workspace_id = ? AND phone LIKE ?", workspaceID, "%"+suffix).
		First(&contact).Error
	if err != nil {
		return nil
	}
	return &contact.ID
}
