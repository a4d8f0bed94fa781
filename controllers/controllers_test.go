package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	dbpkg "socialhub/db"
	"socialhub/models"
)

const testJwtSecret = "test-secret"

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

func testRouter(t *testing.T, database *gorm.DB) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", testJwtSecret)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(dbpkg.SetDBtoContext(database))

	r.GET("/social-webhook", WebhookVerify)
	r.POST("/social-webhook", WebhookUpdate)
	r.GET("/meta-oauth/callback", OAuthCallback)

	auth := r.Group("/", AuthRequired())
	auth.POST("/send-social-message", SendSocialMessage)
	auth.GET("/meta-oauth", StartOAuth)
	auth.GET("/meta-oauth/accounts", ListOAuthAccounts)
	auth.POST("/meta-oauth/select-account", SelectAccount)
	auth.POST("/meta-oauth/disconnect", DisconnectConnection)
	auth.GET("/meta-oauth/status", ConnectionStatus)
	auth.GET("/templates", GetTemplates)
	auth.POST("/templates/preview", PreviewTemplate)
	auth.POST("/templates/sync", SyncTemplates)
	auth.GET("/conversations", GetConversations)
	auth.GET("/conversations/:id/messages", GetConversationMessages)

	return r
}

func authToken(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, r *gin.Engine, method string, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func seedConnection(t *testing.T, database *gorm.DB, platform string, accountID string) *models.Connection {
	t.Helper()
	conn := models.Connection{
		WorkspaceID:       1,
		Platform:          platform,
		PlatformAccountID: accountID,
		AccountName:       "Test Account",
		AccessToken:       "token",
		WabaID:            "waba-1",
		Status:            models.CONNECTION_STATUS_ACTIVE,
	}
	if err := database.Create(&conn).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	return &conn
}

func TestAuthRequiredRejectsMissingToken(t *testing.T) {
	database := openTestDB(t)
	r := testRouter(t, database)

	w := doJSON(t, r, http.MethodGet, "/conversations", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthRequiredRejectsBadSignature(t *testing.T) {
	database := openTestDB(t)
	r := testRouter(t, database)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1})
	signed, _ := token.SignedString([]byte("wrong-secret"))

	w := doJSON(t, r, http.MethodGet, "/conversations", nil, signed)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
