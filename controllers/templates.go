package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"socialhub/config"
	dbpkg "socialhub/db"
	"socialhub/models"
	"socialhub/tools"
)

// GET /templates?platform&language
// Lists sendable (approved) templates from the registry.
func GetTemplates(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	query := database.Model(&models.Template{}).
		Where("status = ?", models.TEMPLATE_STATUS_APPROVED)
	if platform := c.Query("platform"); platform != "" {
		query = query.Where("platform = ?", platform)
	}
	if language := c.Query("language"); language != "" {
		query = query.Where("language = ?", language)
	}

	var templates []models.Template
	if err := query.Order("name asc").Find(&templates).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		RespondError(c, "failed to list templates", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"templates": templates})
}

type previewTemplateRequest struct {
	Platform         string            `json:"platform"`
	TemplateName     string            `json:"templateName"`
	TemplateLanguage string            `json:"templateLanguage"`
	Variables        map[string]string `json:"variables"`
}

// POST /templates/preview
// Renders the template body with the given variables; missing slots come
// back bracketed so callers can show the gap.
func PreviewTemplate(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	var req previewTemplateRequest
	if err := c.BindJSON(&req); err != nil {
		RespondError(c, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TemplateName == "" || req.TemplateLanguage == "" {
		RespondError(c, "templateName and templateLanguage are required", http.StatusBadRequest)
		return
	}
	if req.Platform == "" {
		req.Platform = models.PLATFORM_WHATSAPP
	}

	t, err := models.FindTemplate(database, req.Platform, req.TemplateName, req.TemplateLanguage)
	if err != nil {
		RespondError(c, "template lookup failed", http.StatusInternalServerError)
		return
	}
	if t == nil {
		RespondError(c, "template not found", http.StatusNotFound)
		return
	}

	RespondSuccess(c, gin.H{
		"template": t,
		"preview":  models.RenderTemplate(t.Body, req.Variables),
	})
}

type syncTemplatesRequest struct {
	ConnectionID int64 `json:"connection_id"`
}

// POST /templates/sync
// Pulls the WABA's registered templates into the registry. WhatsApp only;
// the other platforms have no template concept.
func SyncTemplates(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	var req syncTemplatesRequest
	if err := c.BindJSON(&req); err != nil || req.ConnectionID <= 0 {
		RespondError(c, "connection_id is required", http.StatusBadRequest)
		return
	}

	var conn models.Connection
	if err := database.First(&conn, req.ConnectionID).Error; err != nil {
		RespondError(c, "connection not found", http.StatusNotFound)
		return
	}
	if conn.Platform != models.PLATFORM_WHATSAPP || conn.WabaID == "" {
		RespondError(c, "connection has no template registry", http.StatusBadRequest)
		return
	}

	client := tools.WhatsAppClient{
		AccessToken:   conn.AccessToken,
		ApiVersion:    config.Get().MetaApiVersion,
		PhoneNumberID: conn.PlatformAccountID,
	}
	remote, err := client.ListTemplates(c.Request.Context(), conn.WabaID)
	if err != nil {
		RespondErrorDetails(c, "template fetch failed", err.Error(), http.StatusBadRequest)
		return
	}

	synced := 0
	for _, rt := range remote {
		body := rt.BodyText()
		slots, _ := json.Marshal(models.ExtractVariableSlots(body))
		t := models.Template{
			Platform:  models.PLATFORM_WHATSAPP,
			Name:      rt.Name,
			Language:  rt.Language,
			Category:  rt.Category,
			Body:      body,
			Variables: string(slots),
			Status:    strings.ToLower(rt.Status),
		}
		if err := models.UpsertTemplate(database, &t); err != nil {
			config.LogError(config.GetLogger(), "controllers", "SyncTemplates", "upsert template", rt.Name, err)
			continue
		}
		synced++
	}

	RespondSuccess(c, gin.H{"success": true, "synced": synced})
}
