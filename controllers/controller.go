package controllers

import "github.com/gin-gonic/gin"

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"error": msg})
}

// RespondErrorDetails carries a provider error alongside our message, so
// upstream rejections surface verbatim instead of as masked exceptions.
func RespondErrorDetails(c *gin.Context, msg string, details any, code int) {
	c.JSON(code, gin.H{"error": msg, "details": details})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(200, payload)
}
