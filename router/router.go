package router

import (
	"socialhub/config"
	"socialhub/controllers"
	"socialhub/middleware"

	"github.com/gin-gonic/gin"
)

// Initialize wires all routes and middlewares.
func Initialize(r *gin.Engine, cfg config.Configuration) {
	_ = cfg

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Webhook (Meta platforms) - no bearer auth, signature-verified
	r.GET("/social-webhook", controllers.WebhookVerify)
	r.POST("/social-webhook", Logger(), controllers.WebhookUpdate)

	// OAuth callback arrives from the browser, state-verified
	r.GET("/meta-oauth/callback", Logger(), controllers.OAuthCallback)

	// Authenticated routes (bearer token required)
	auth := r.Group("")
	auth.Use(controllers.AuthRequired())

	auth.POST("/send-social-message", Logger(), controllers.SendSocialMessage)

	auth.GET("/meta-oauth", Logger(), controllers.StartOAuth)
	auth.GET("/meta-oauth/accounts", Logger(), controllers.ListOAuthAccounts)
	auth.POST("/meta-oauth/select-account", Logger(), controllers.SelectAccount)
	auth.POST("/meta-oauth/disconnect", Logger(), controllers.DisconnectConnection)
	auth.GET("/meta-oauth/status", Logger(), controllers.ConnectionStatus)

	auth.GET("/templates", Logger(), controllers.GetTemplates)
	auth.POST("/templates/preview", Logger(), controllers.PreviewTemplate)
	auth.POST("/templates/sync", Logger(), controllers.SyncTemplates)

	auth.GET("/conversations", Logger(), controllers.GetConversations)
	auth.GET("/conversations/:id/messages", Logger(), controllers.GetConversationMessages)

	config.GetLogger().Info("routes initialized")
}
