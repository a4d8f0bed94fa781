package workers

import (
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	dbpkg "socialhub/db"
	"socialhub/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	database, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	database.DB().SetMaxOpenConns(1)
	database.LogMode(false)

	if err := dbpkg.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func seedEvent(t *testing.T, database *gorm.DB, createdAt time.Time, processed bool) *models.WebhookEvent {
	t.Helper()
	ev := models.WebhookEvent{
		Object:    "whatsapp_business_account",
		Payload:   `{"object": "whatsapp_business_account", "entry": []}`,
		Processed: processed,
	}
	if err := database.Create(&ev).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	if err := database.Model(&models.WebhookEvent{}).Where("id = ?", ev.ID).
		Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate event: %v", err)
	}
	return &ev
}

func TestReplayStaleEventsClaimsOldUnprocessed(t *testing.T) {
	database := openTestDB(t)

	stale := seedEvent(t, database, time.Now().Add(-10*time.Minute), false)
	fresh := seedEvent(t, database, time.Now(), false)
	done := seedEvent(t, database, time.Now().Add(-10*time.Minute), true)

	replayStaleEvents(database)

	var stored models.WebhookEvent
	if err := database.First(&stored, stale.ID).Error; err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if !stored.Processed {
		t.Fatal("stale event not claimed")
	}

	// events inside the grace period are left for the inline path
	stored = models.WebhookEvent{}
	if err := database.First(&stored, fresh.ID).Error; err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if stored.Processed {
		t.Fatal("fresh event should not be replayed yet")
	}

	stored = models.WebhookEvent{}
	if err := database.First(&stored, done.ID).Error; err != nil {
		t.Fatalf("reload done: %v", err)
	}
	if !stored.Processed {
		t.Fatal("processed flag lost")
	}
}

func TestClaimWebhookEventIsExclusive(t *testing.T) {
	database := openTestDB(t)
	ev := seedEvent(t, database, time.Now().Add(-10*time.Minute), false)

	first, err := models.ClaimWebhookEvent(database, ev.ID)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	second, err := models.ClaimWebhookEvent(database, ev.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !first || second {
		t.Fatalf("expected exactly one winner, got %v and %v", first, second)
	}
}
