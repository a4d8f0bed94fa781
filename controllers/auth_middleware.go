package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"socialhub/config"
)

type authClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

const ctxUserIDKey = "auth_user_id"

// AuthRequired validates the Bearer token and puts the user id in context.
// User records live in the external auth collaborator; this core only needs
// the identity for OAuth-state ownership.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			RespondError(c, "missing bearer token", http.StatusUnauthorized)
			c.Abort()
			return
		}

		tokenStr := strings.TrimPrefix(h, "Bearer ")
		token, err := jwt.ParseWithClaims(tokenStr, &authClaims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(config.Get().JwtSecret), nil
		})
		if err != nil || !token.Valid {
			RespondError(c, "invalid token", http.StatusUnauthorized)
			c.Abort()
			return
		}

		claims := token.Claims.(*authClaims)
		if claims.UserID <= 0 {
			RespondError(c, "invalid token", http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Set(ctxUserIDKey, claims.UserID)
		c.Next()
	}
}

// AuthUserID returns the user id loaded by AuthRequired.
func AuthUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
