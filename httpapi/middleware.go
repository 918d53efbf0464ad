package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	clipauth "github.com/clipverse/clipauth"
)

const userIDKey = "userID"

// requestContext copies the caller's IP and user agent into the request
// context so engine audit events carry them.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = clipauth.WithClientIP(ctx, c.ClientIP())
		ctx = clipauth.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth validates the access token from the accessToken cookie or the
// Authorization: Bearer header and stores the user ID on the gin context.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("accessToken")
		if err != nil || token == "" {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
				StatusCode: http.StatusUnauthorized,
				Message:    "unauthorized request",
				Success:    false,
			})
			return
		}

		result, err := s.engine.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
				StatusCode: http.StatusUnauthorized,
				Message:    "invalid access token",
				Success:    false,
			})
			return
		}

		c.Set(userIDKey, result.UserID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	v, ok := c.Get(userIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
