package models

import (
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one connection so every query sees the same in-memory database
	database.DB().SetMaxOpenConns(1)
	database.LogMode(false)

	if err := database.AutoMigrate(
		&Connection{},
		&Conversation{},
		&Message{},
		&Template{},
		&WebhookEvent{},
		&OAuthState{},
		&Contact{},
	).Error; err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func createTestConnection(t *testing.T, database *gorm.DB, platform string, accountID string) *Connection {
	t.Helper()

	conn := Connection{
		WorkspaceID:       1,
		Platform:          platform,
		PlatformAccountID: accountID,
		AccountName:       "Test Account",
		AccessToken:       "token",
		Status:            CONNECTION_STATUS_ACTIVE,
	}
	if err := database.Create(&conn).Error; err != nil {
		t.Fatalf("create connection: %v", err)
	}
	return &conn
}
