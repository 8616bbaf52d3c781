package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tubequiz/internal/response"
)

// RequireLogin lets only authenticated sessions through. It must run after RequireSession.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := GetSession(c)
		if sess == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !sess.Authenticated || sess.UserID == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrLoginRequired)
			return
		}
		c.Next()
	}
}
