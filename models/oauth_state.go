package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

/************************************************
/**** MARK: OAUTH STATE PURPOSE ****/
/************************************************/
// authorize: CSRF state for the provider redirect, short-lived.
const OAUTH_PURPOSE_AUTHORIZE = "authorize"

// account_selection: carries the long-lived token between callback and the
// account-selection step.
const OAUTH_PURPOSE_ACCOUNT_SELECTION = "account_selection"

const oauthAuthorizeTTL = 10 * time.Minute
const oauthSelectionTTL = 1 * time.Hour

var ErrOAuthStateExpired = errors.New("oauth state expired")

// OAuthState is an ephemeral single-use token correlating an authorize
// attempt or account-selection step with a user. Deleted on first successful
// consumption or expiry; reuse must always fail.
type OAuthState struct {
	ID       int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Token    string `gorm:"not null;unique_index" json:"token"`
	UserID   int64  `gorm:"column:user_id;not null" json:"user_id"`
	Platform string `gorm:"not null" json:"platform"`
	Purpose  string `gorm:"not null" json:"purpose"`
	// AccessToken is the long-lived user token, present only on
	// account_selection states.
	AccessToken  string     `gorm:"column:access_token;type:text" json:"-"`
	MetaUserID   string     `gorm:"column:meta_user_id" json:"meta_user_id,omitempty"`
	MetaUserName string     `gorm:"column:meta_user_name" json:"meta_user_name,omitempty"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt    *time.Time `json:"created_at"`
}

// NewOAuthState builds an unsaved state with an opaque token and the TTL of
// its purpose.
func NewOAuthState(userID int64, platform string, purpose string) *OAuthState {
	ttl := oauthAuthorizeTTL
	if purpose == OAUTH_PURPOSE_ACCOUNT_SELECTION {
		ttl = oauthSelectionTTL
	}
	return &OAuthState{
		Token:     uuid.NewString(),
		UserID:    userID,
		Platform:  platform,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// ResolveOAuthState looks a state up without consuming it (account
// discovery presents the token more than once before selection).
func ResolveOAuthState(database *gorm.DB, token string, purpose string) (*OAuthState, error) {
	var st OAuthState
	if err := database.Where("token = ? AND purpose = ?", token, purpose).First(&st).Error; err != nil {
		return nil, err
	}
	if time.Now().After(st.ExpiresAt) {
		_ = database.Delete(&OAuthState{}, "id = ?", st.ID).Error
		return nil, ErrOAuthStateExpired
	}
	return &st, nil
}

// ConsumeOAuthState resolves and deletes the state in one transaction.
// A consumed or expired token never resolves again.
func ConsumeOAuthState(database *gorm.DB, token string, purpose string) (*OAuthState, error) {
	tx := database.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var st OAuthState
	if err := tx.Where("token = ? AND purpose = ?", token, purpose).First(&st).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(&OAuthState{}, "id = ?", st.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if time.Now().After(st.ExpiresAt) {
		return nil, ErrOAuthStateExpired
	}
	return &st, nil
}

// PurgeExpiredOAuthStates removes leftovers that were never consumed.
func PurgeExpiredOAuthStates(database *gorm.DB) error {
	return database.Delete(&OAuthState{}, "expires_at < ?", time.Now()).Error
}
