package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	dbpkg "socialhub/db"
	"socialhub/models"
)

// conversationView decorates a conversation with the derived session state,
// recomputed at read time.
type conversationView struct {
	models.Conversation
	RequiresTemplate bool `json:"requires_template"`
}

// GET /conversations?connection_id
func GetConversations(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	query := database.Model(&models.Conversation{})
	if connectionID := c.Query("connection_id"); connectionID != "" {
		query = query.Where("connection_id = ?", connectionID)
	}

	var conversations []models.Conversation
	if err := query.Order("last_message_at desc").Find(&conversations).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		RespondError(c, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	views := make([]conversationView, 0, len(conversations))
	for _, cv := range conversations {
		views = append(views, conversationView{
			Conversation:     cv,
			RequiresTemplate: cv.RequiresTemplate(now),
		})
	}

	RespondSuccess(c, gin.H{"conversations": views})
}

// GET /conversations/:id/messages
func GetConversationMessages(c *gin.Context) {
	database := dbpkg.DBInstance(c)

	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	var cv models.Conversation
	if err := database.First(&cv, id).Error; err != nil {
		RespondError(c, "conversation not found", http.StatusNotFound)
		return
	}

	var messages []models.Message
	if err := database.
		Where("conversation_id = ?", cv.ID).
		Order("id asc").
		Find(&messages).Error; err != nil && !gorm.IsRecordNotFoundError(err) {
		RespondError(c, "failed to list messages", http.StatusInternalServerError)
		return
	}

	// reading the thread clears the unread counter
	_ = database.Model(&models.Conversation{}).Where("id = ?", cv.ID).
		Update("unread_count", 0).Error

	RespondSuccess(c, gin.H{
		"conversation": conversationView{Conversation: cv, RequiresTemplate: cv.RequiresTemplate(time.Now())},
		"messages":     messages,
	})
}
