package workers

import (
	"context"
	"time"

	"github.com/jinzhu/gorm"

	"socialhub/config"
	"socialhub/models"
	"socialhub/processors"
)

const replayGracePeriod = 2 * time.Minute

// StartWebhookReplay starts a loop that reprocesses webhook events left
// unprocessed by a crash between persist and route. Ingestion is idempotent
// (dedup on provider external id) so replaying an already-handled event is
// harmless.
func StartWebhookReplay(database *gorm.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			replayStaleEvents(database)
		}
	}()
}

func replayStaleEvents(database *gorm.DB) {
	logger := config.GetLogger()
	cutoff := time.Now().Add(-replayGracePeriod)

	var events []models.WebhookEvent
	if err := database.
		Where("processed = ? AND created_at <= ?", false, cutoff).
		Order("id asc").
		Limit(20).
		Find(&events).Error; err != nil {
		config.LogError(logger, "workers", "replayStaleEvents", "query stale events", nil, err)
		return
	}

	for _, ev := range events {
		// claim first so concurrent workers never double-process
		claimed, err := models.ClaimWebhookEvent(database, ev.ID)
		if err != nil || !claimed {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		results := processors.ProcessEvent(ctx, database, &ev)
		cancel()

		fields := processors.Summarize(results)
		fields["event_id"] = ev.ID
		logger.WithFields(fields).Info("webhook event replayed")
	}
}
