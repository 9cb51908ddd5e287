package middleware

import (
	"net/http"
	"strings"

	"chat-relay/internal/service"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	users *service.UserService
}

func NewAuthMiddleware(users *service.UserService) *AuthMiddleware {
	return &AuthMiddleware{users: users}
}

// RequireAuth validates the Bearer token and stores the username in the
// request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "authorization header is required", "")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		username, err := am.users.ValidateToken(tokenString)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid token", "")
			return
		}

		c.Set("username", username)
		c.Next()
	}
}
