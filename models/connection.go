package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: PLATFORMS ****/
/************************************************/
const PLATFORM_WHATSAPP = "whatsapp"
const PLATFORM_MESSENGER = "messenger"
const PLATFORM_INSTAGRAM = "instagram"

/************************************************
/**** MARK: CONNECTION STATUS ****/
/************************************************/
const CONNECTION_STATUS_ACTIVE = "active"
const CONNECTION_STATUS_DISCONNECTED = "disconnected"

// Connection binds a workspace to one external messaging account
// (a WhatsApp phone number, a Facebook page or an Instagram business
// account) together with the credential used to call Graph on its behalf.
//
// Identity is (workspace_id, platform, platform_account_id) and is
// immutable once created; connections are soft-disconnected, never deleted.
type Connection struct {
	ID                int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	WorkspaceID       int64  `gorm:"column:workspace_id;not null;unique_index:idx_connections_identity" json:"workspace_id"`
	Platform          string `gorm:"not null;unique_index:idx_connections_identity" json:"platform"`
	PlatformAccountID string `gorm:"column:platform_account_id;not null;unique_index:idx_connections_identity" json:"platform_account_id"`
	AccountName       string `gorm:"column:account_name" json:"account_name"`
	AccessToken       string `gorm:"column:access_token;not null" json:"-"`
	// WabaID scopes template lookups and webhook subscription for WhatsApp
	// connections; empty for page-based platforms.
	WabaID    string     `gorm:"column:waba_id" json:"waba_id,omitempty"`
	Status    string     `gorm:"not null;default:'active'" json:"status"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func IsValidPlatform(platform string) bool {
	switch platform {
	case PLATFORM_WHATSAPP, PLATFORM_MESSENGER, PLATFORM_INSTAGRAM:
		return true
	}
	return false
}

// FindConnectionByRoutingKey resolves the connection a webhook item belongs
// to. The routing key is the platform account id Meta addresses events with:
// phone_number_id (WhatsApp), page_id (Messenger) or the IG account id.
func FindConnectionByRoutingKey(database *gorm.DB, platform string, accountID string) (*Connection, error) {
	var conn Connection
	err := database.
		Where("platform = ? AND platform_account_id = ? AND status = ?", platform, accountID, CONNECTION_STATUS_ACTIVE).
		First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// UpsertConnection creates or refreshes the connection for the given
// identity. The unique composite index makes concurrent selections of the
// same account converge on a single row: a lost insert race falls back to
// re-reading and updating the winner.
func UpsertConnection(database *gorm.DB, conn *Connection) error {
	var existing Connection
	err := database.
		Where("workspace_id = ? AND platform = ? AND platform_account_id = ?",
			conn.WorkspaceID, conn.Platform, conn.PlatformAccountID).
		First(&existing).Error

	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return err
	}

	if gorm.IsRecordNotFoundError(err) {
		conn.Status = CONNECTION_STATUS_ACTIVE
		if createErr := database.Create(conn).Error; createErr == nil {
			return nil
		}
		// lost the race against a concurrent selection of the same account
		if err := database.
			Where("workspace_id = ? AND platform = ? AND platform_account_id = ?",
				conn.WorkspaceID, conn.Platform, conn.PlatformAccountID).
			First(&existing).Error; err != nil {
			return err
		}
	}

	updates := map[string]any{
		"account_name": conn.AccountName,
		"access_token": conn.AccessToken,
		"status":       CONNECTION_STATUS_ACTIVE,
	}
	if conn.WabaID != "" {
		updates["waba_id"] = conn.WabaID
	}
	if err := database.Model(&Connection{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return err
	}
	return database.First(conn, existing.ID).Error
}
