package models

import (
	"testing"
	"time"

	"github.com/jinzhu/gorm"
)

func TestConsumeOAuthStateIsSingleUse(t *testing.T) {
	database := openTestDB(t)

	state := NewOAuthState(7, PLATFORM_WHATSAPP, OAUTH_PURPOSE_AUTHORIZE)
	if err := database.Create(state).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := ConsumeOAuthState(database, state.Token, OAUTH_PURPOSE_AUTHORIZE)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if got.UserID != 7 || got.Platform != PLATFORM_WHATSAPP {
		t.Fatalf("unexpected state: %+v", got)
	}

	if _, err := ConsumeOAuthState(database, state.Token, OAUTH_PURPOSE_AUTHORIZE); !gorm.IsRecordNotFoundError(err) {
		t.Fatalf("expected reuse to fail with not found, got %v", err)
	}
}

func TestConsumeOAuthStateRejectsExpired(t *testing.T) {
	database := openTestDB(t)

	state := NewOAuthState(7, PLATFORM_MESSENGER, OAUTH_PURPOSE_AUTHORIZE)
	state.ExpiresAt = time.Now().Add(-time.Minute)
	if err := database.Create(state).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ConsumeOAuthState(database, state.Token, OAUTH_PURPOSE_AUTHORIZE); err != ErrOAuthStateExpired {
		t.Fatalf("expected expired error, got %v", err)
	}
	// expiry also burns the token
	if _, err := ConsumeOAuthState(database, state.Token, OAUTH_PURPOSE_AUTHORIZE); !gorm.IsRecordNotFoundError(err) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
}

func TestConsumeOAuthStateChecksPurpose(t *testing.T) {
	database := openTestDB(t)

	state := NewOAuthState(7, PLATFORM_WHATSAPP, OAUTH_PURPOSE_AUTHORIZE)
	if err := database.Create(state).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := ConsumeOAuthState(database, state.Token, OAUTH_PURPOSE_ACCOUNT_SELECTION); !gorm.IsRecordNotFoundError(err) {
		t.Fatalf("expected purpose mismatch to fail, got %v", err)
	}
}

func TestResolveOAuthStateDoesNotConsume(t *testing.T) {
	database := openTestDB(t)

	state := NewOAuthState(7, PLATFORM_INSTAGRAM, OAUTH_PURPOSE_ACCOUNT_SELECTION)
	state.AccessToken = "long-lived"
	if err := database.Create(state).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := ResolveOAuthState(database, state.Token, OAUTH_PURPOSE_ACCOUNT_SELECTION)
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got.AccessToken != "long-lived" {
			t.Fatalf("token lost on resolve %d", i)
		}
	}
}

func TestPurgeExpiredOAuthStates(t *testing.T) {
	database := openTestDB(t)

	live := NewOAuthState(1, PLATFORM_WHATSAPP, OAUTH_PURPOSE_AUTHORIZE)
	stale := NewOAuthState(2, PLATFORM_WHATSAPP, OAUTH_PURPOSE_AUTHORIZE)
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	for _, st := range []*OAuthState{live, stale} {
		if err := database.Create(st).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := PurgeExpiredOAuthStates(database); err != nil {
		t.Fatalf("purge: %v", err)
	}

	var count int
	database.Model(&OAuthState{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 surviving state, got %d", count)
	}
}
