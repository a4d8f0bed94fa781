package models

import (
	"testing"
	"time"

	"github.com/jinzhu/gorm"
)

func strptr(s string) *string { return &s }

func insertTestMessage(t *testing.T, database *gorm.DB, conversationID int64, direction string, status string, externalID string) *Message {
	t.Helper()
	now := time.Now()
	m := Message{
		ConversationID: conversationID,
		Platform:       PLATFORM_WHATSAPP,
		Direction:      direction,
		Type:           MESSAGE_TYPE_TEXT,
		Content:        "hello",
		Status:         status,
		ExternalID:     strptr(externalID),
		SentAt:         &now,
	}
	inserted, err := InsertMessageDedup(database, &m)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected insert")
	}
	return &m
}

func TestInsertMessageDedupRejectsRedelivery(t *testing.T) {
	database := openTestDB(t)
	first := insertTestMessage(t, database, 1, MESSAGE_DIRECTION_INBOUND, MESSAGE_STATUS_RECEIVED, "wamid.AAA")

	dup := Message{
		ConversationID: 1,
		Platform:       PLATFORM_WHATSAPP,
		Direction:      MESSAGE_DIRECTION_INBOUND,
		Type:           MESSAGE_TYPE_TEXT,
		Content:        "hello again",
		Status:         MESSAGE_STATUS_RECEIVED,
		ExternalID:     strptr("wamid.AAA"),
	}
	inserted, err := InsertMessageDedup(database, &dup)
	if err != nil {
		t.Fatalf("dedup insert: %v", err)
	}
	if inserted {
		t.Fatal("expected redelivery to be rejected")
	}
	if dup.ID != first.ID {
		t.Fatalf("expected existing row back, got %d want %d", dup.ID, first.ID)
	}

	var count int
	database.Model(&Message{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 message, got %d", count)
	}
}

func TestFailedSendsWithoutExternalIDDoNotCollide(t *testing.T) {
	database := openTestDB(t)

	for i := 0; i < 2; i++ {
		m := Message{
			ConversationID: 1,
			Platform:       PLATFORM_WHATSAPP,
			Direction:      MESSAGE_DIRECTION_OUTBOUND,
			Type:           MESSAGE_TYPE_TEXT,
			Content:        "rejected",
			Status:         MESSAGE_STATUS_FAILED,
		}
		if err := database.Create(&m).Error; err != nil {
			t.Fatalf("create failed message %d: %v", i, err)
		}
	}

	var count int
	database.Model(&Message{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 failed messages, got %d", count)
	}
}

func TestAdvanceMessageStatusForwardOnly(t *testing.T) {
	database := openTestDB(t)
	m := insertTestMessage(t, database, 1, MESSAGE_DIRECTION_OUTBOUND, MESSAGE_STATUS_SENT, "wamid.OUT")

	if err := AdvanceMessageStatus(database, PLATFORM_WHATSAPP, "wamid.OUT", MESSAGE_STATUS_READ, "", ""); err != nil {
		t.Fatalf("advance to read: %v", err)
	}

	// a late "delivered" callback must not regress the status
	if err := AdvanceMessageStatus(database, PLATFORM_WHATSAPP, "wamid.OUT", MESSAGE_STATUS_DELIVERED, "", ""); err != nil {
		t.Fatalf("late delivered: %v", err)
	}

	var stored Message
	if err := database.First(&stored, m.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != MESSAGE_STATUS_READ {
		t.Fatalf("status regressed to %q", stored.Status)
	}
}

func TestAdvanceMessageStatusFailedIsTerminal(t *testing.T) {
	database := openTestDB(t)
	m := insertTestMessage(t, database, 1, MESSAGE_DIRECTION_OUTBOUND, MESSAGE_STATUS_SENT, "wamid.OUT")

	if err := AdvanceMessageStatus(database, PLATFORM_WHATSAPP, "wamid.OUT", MESSAGE_STATUS_FAILED, "131047", "Re-engagement message"); err != nil {
		t.Fatalf("advance to failed: %v", err)
	}
	if err := AdvanceMessageStatus(database, PLATFORM_WHATSAPP, "wamid.OUT", MESSAGE_STATUS_DELIVERED, "", ""); err != nil {
		t.Fatalf("post-failure delivered: %v", err)
	}

	var stored Message
	if err := database.First(&stored, m.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != MESSAGE_STATUS_FAILED {
		t.Fatalf("failed is terminal, got %q", stored.Status)
	}
	if stored.ErrorCode != "131047" || stored.ErrorMessage != "Re-engagement message" {
		t.Fatalf("provider error lost: %q %q", stored.ErrorCode, stored.ErrorMessage)
	}
}

func TestAdvanceMessageStatusUnknownMessage(t *testing.T) {
	database := openTestDB(t)

	err := AdvanceMessageStatus(database, PLATFORM_WHATSAPP, "wamid.NOPE", MESSAGE_STATUS_DELIVERED, "", "")
	if !gorm.IsRecordNotFoundError(err) {
		t.Fatalf("expected record not found, got %v", err)
	}
}
