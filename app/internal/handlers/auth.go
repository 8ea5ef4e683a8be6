package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/marketconnect/llm-council/app/domain/entities"
)

// AdminAuth guards admin routes. The request must carry the configured
// token as a bearer credential and come from a principal isAdmin accepts.
// An empty token disables the guarded routes.
func AdminAuth(token string, isAdmin func(principal string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			respondError(c, "AdminAuth", entities.ErrUnauthorized)
			c.Abort()
			return
		}
		got := bearerToken(c)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			respondError(c, "AdminAuth", entities.ErrAnonymous)
			c.Abort()
			return
		}
		if isAdmin == nil || !isAdmin(PrincipalOf(c)) {
			respondError(c, "AdminAuth", entities.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
