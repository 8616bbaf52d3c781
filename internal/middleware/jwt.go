package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenFromRequest returns the session token from the Authorization bearer
// header, falling back to the ?token= query parameter for WebSocket clients
// that cannot set headers. It returns "" when neither is present.
func TokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if tok := strings.TrimSpace(parts[1]); tok != "" {
				return tok
			}
		}
	}
	return c.Query("token")
}
