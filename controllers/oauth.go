package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"socialhub/config"
	dbpkg "socialhub/db"
	"socialhub/models"
	"socialhub/tools"
)

func metaOAuthClient() tools.MetaOAuthClient {
	conf := config.Get()
	return tools.MetaOAuthClient{
		AppID:       conf.MetaAppID,
		AppSecret:   conf.MetaAppSecret,
		ApiVersion:  conf.MetaApiVersion,
		RedirectURI: conf.MetaRedirectBase + "/meta-oauth/callback",
	}
}

// GET /meta-oauth?platform=whatsapp|messenger|instagram
// Starts the connect flow: persists a short-lived CSRF state bound to the
// authenticated user and hands back the provider authorize URL.
func StartOAuth(c *gin.Context) {
	userID, ok := AuthUserID(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	platform := c.Query("platform")
	if !models.IsValidPlatform(platform) {
		RespondError(c, "invalid platform", http.StatusBadRequest)
		return
	}

	database := dbpkg.DBInstance(c)
	state := models.NewOAuthState(userID, platform, models.OAUTH_PURPOSE_AUTHORIZE)
	if err := database.Create(state).Error; err != nil {
		RespondError(c, "failed to persist oauth state", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{
		"authUrl":  metaOAuthClient().AuthorizeURL(platform, state.Token),
		"platform": platform,
	})
}

// GET /meta-oauth/callback?code&state
// Unauthenticated: the browser arrives from Meta. The state is verified and
// consumed before any token exchange, so a replayed or expired state never
// reaches the provider. On success the browser is redirected back to the
// app carrying an account-selection token.
func OAuthCallback(c *gin.Context) {
	conf := config.Get()
	database := dbpkg.DBInstance(c)

	if provErr := c.Query("error"); provErr != "" {
		redirectWithError(c, provErr)
		return
	}

	stateToken := c.Query("state")
	code := c.Query("code")
	if stateToken == "" || code == "" {
		RespondError(c, "missing code or state", http.StatusBadRequest)
		return
	}

	state, err := models.ConsumeOAuthState(database, stateToken, models.OAUTH_PURPOSE_AUTHORIZE)
	if err != nil {
		RespondError(c, "invalid or expired oauth state", http.StatusBadRequest)
		return
	}

	client := metaOAuthClient()
	ctx := c.Request.Context()

	shortLived, err := client.ExchangeCode(ctx, code)
	if err != nil {
		RespondErrorDetails(c, "token exchange failed", err.Error(), http.StatusBadRequest)
		return
	}
	longLived, err := client.ExtendToken(ctx, shortLived)
	if err != nil {
		RespondErrorDetails(c, "long-lived token exchange failed", err.Error(), http.StatusBadRequest)
		return
	}
	me, err := client.FetchMe(ctx, longLived)
	if err != nil {
		RespondErrorDetails(c, "identity fetch failed", err.Error(), http.StatusBadRequest)
		return
	}

	selection := models.NewOAuthState(state.UserID, state.Platform, models.OAUTH_PURPOSE_ACCOUNT_SELECTION)
	selection.AccessToken = longLived
	selection.MetaUserID = me.ID
	selection.MetaUserName = me.Name
	if err := database.Create(selection).Error; err != nil {
		RespondError(c, "failed to persist selection token", http.StatusInternalServerError)
		return
	}

	q := url.Values{}
	q.Set("meta_auth", selection.Token)
	q.Set("platform", state.Platform)
	c.Redirect(http.StatusFound, conf.MetaRedirectBase+"/integrations?"+q.Encode())
}

func redirectWithError(c *gin.Context, reason string) {
	q := url.Values{}
	q.Set("meta_auth_error", reason)
	c.Redirect(http.StatusFound, config.Get().MetaRedirectBase+"/integrations?"+q.Encode())
}

// GET /meta-oauth/accounts?token_id&platform
// Account discovery: resolves the selection token (without consuming it)
// and enumerates the accounts the long-lived token can bind.
func ListOAuthAccounts(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	tokenID := c.Query("token_id")
	if tokenID == "" {
		RespondError(c, "token_id is required", http.StatusBadRequest)
		return
	}

	state, err := models.ResolveOAuthState(database, tokenID, models.OAUTH_PURPOSE_ACCOUNT_SELECTION)
	if err != nil {
		RespondError(c, "invalid or expired token", http.StatusBadRequest)
		return
	}

	platform := c.DefaultQuery("platform", state.Platform)
	client := metaOAuthClient()
	ctx := c.Request.Context()

	var accounts any
	switch platform {
	case models.PLATFORM_WHATSAPP:
		accounts, err = client.ListWhatsAppAccounts(ctx, state.AccessToken)
	case models.PLATFORM_MESSENGER:
		accounts, err = client.ListPages(ctx, state.AccessToken)
	case models.PLATFORM_INSTAGRAM:
		pages, pagesErr := client.ListPages(ctx, state.AccessToken)
		err = pagesErr
		if pagesErr == nil {
			// only pages with a linked IG business account are selectable
			withIG := make([]tools.PageAccount, 0, len(pages))
			for _, p := range pages {
				if p.InstagramID != "" {
					withIG = append(withIG, p)
				}
			}
			accounts = withIG
		}
	default:
		RespondError(c, "invalid platform", http.StatusBadRequest)
		return
	}
	if err != nil {
		RespondErrorDetails(c, "account discovery failed", err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{
		"accounts":  accounts,
		"meta_user": gin.H{"id": state.MetaUserID, "name": state.MetaUserName},
	})
}

type selectAccountRequest struct {
	TokenID     string `json:"token_id"`
	WorkspaceID int64  `json:"workspace_id"`
	Account     struct {
		// ID is the platform account id the connection routes on:
		// phone_number_id, page_id or IG account id.
		ID              string `json:"id"`
		Name            string `json:"name"`
		WabaID          string `json:"waba_id"`
		PageID          string `json:"page_id"`
		PageAccessToken string `json:"page_access_token"`
	} `json:"account"`
}

// POST /meta-oauth/select-account
// Finishes the flow: consumes the selection token (single use) and upserts
// the Connection. Messenger/Instagram store the page-scoped token; WhatsApp
// stores the user's long-lived token.
func SelectAccount(c *gin.Context) {
	logger := config.GetLogger()
	database := dbpkg.DBInstance(c)

	var req selectAccountRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TokenID == "" || req.WorkspaceID <= 0 || strings.TrimSpace(req.Account.ID) == "" {
		RespondError(c, "token_id, workspace_id and account.id are required", http.StatusBadRequest)
		return
	}

	state, err := models.ConsumeOAuthState(database, req.TokenID, models.OAUTH_PURPOSE_ACCOUNT_SELECTION)
	if err != nil {
		RespondError(c, "invalid or expired token", http.StatusBadRequest)
		return
	}

	accessToken := state.AccessToken
	if state.Platform == models.PLATFORM_MESSENGER || state.Platform == models.PLATFORM_INSTAGRAM {
		if strings.TrimSpace(req.Account.PageAccessToken) == "" {
			RespondError(c, "account.page_access_token is required", http.StatusBadRequest)
			return
		}
		accessToken = req.Account.PageAccessToken
	}

	conn := models.Connection{
		WorkspaceID:       req.WorkspaceID,
		Platform:          state.Platform,
		PlatformAccountID: req.Account.ID,
		AccountName:       req.Account.Name,
		AccessToken:       accessToken,
		WabaID:            req.Account.WabaID,
	}
	if err := models.UpsertConnection(database, &conn); err != nil {
		RespondError(c, "failed to persist connection", http.StatusInternalServerError)
		return
	}

	// best effort: subscribe the app so webhooks start flowing
	ctx := c.Request.Context()
	apiVersion := config.Get().MetaApiVersion
	switch state.Platform {
	case models.PLATFORM_WHATSAPP:
		wa := tools.WhatsAppClient{AccessToken: accessToken, ApiVersion: apiVersion}
		if err := wa.SubscribeWaba(ctx, conn.WabaID); err != nil {
			config.LogError(logger, "controllers", "SelectAccount", "subscribe waba", conn.WabaID, err)
		}
	case models.PLATFORM_MESSENGER, models.PLATFORM_INSTAGRAM:
		pageID := req.Account.PageID
		if pageID == "" {
			pageID = req.Account.ID
		}
		ms := tools.MessengerClient{PageAccessToken: accessToken, ApiVersion: apiVersion}
		if err := ms.SubscribePage(ctx, pageID); err != nil {
			config.LogError(logger, "controllers", "SelectAccount", "subscribe page", pageID, err)
		}
	}

	RespondSuccess(c, gin.H{"success": true, "connection": conn})
}

type disconnectRequest struct {
	ConnectionID int64 `json:"connection_id"`
}

// POST /meta-oauth/disconnect
// Soft-disconnect only: the row (and its history) stays, webhook routing
// stops matching. No provider-side token revocation is attempted.
func DisconnectConnection(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	var req disconnectRequest
	if err := c.BindJSON(&req); err != nil || req.ConnectionID <= 0 {
		RespondError(c, "connection_id is required", http.StatusBadRequest)
		return
	}

	var conn models.Connection
	if err := database.First(&conn, req.ConnectionID).Error; err != nil {
		RespondError(c, "connection not found", http.StatusNotFound)
		return
	}

	if err := database.Model(&models.Connection{}).Where("id = ?", conn.ID).
		Update("status", models.CONNECTION_STATUS_DISCONNECTED).Error; err != nil {
		RespondError(c, "failed to disconnect", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"success": true})
}

// GET /meta-oauth/status?platform?&workspace_id?
func ConnectionStatus(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	query := database.Model(&models.Connection{})
	if platform := c.Query("platform"); platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if workspaceID := c.Query("workspace_id"); workspaceID != "" {
		query = query.Where("workspace_id = ?", workspaceID)
	}

	var connections []models.Connection
	if err := query.Order("id asc").Find(&connections).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		RespondError(c, "failed to list connections", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"connections": connections})
}
