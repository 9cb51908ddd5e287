package middleware

import "github.com/gin-gonic/gin"

// WSAuth reads an optional ?token= query parameter on the websocket
// upgrade. A valid token pre-authenticates the connection; without one
// the client authenticates with its first event, so the upgrade never
// fails here.
func (am *AuthMiddleware) WSAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.Query("token"); token != "" {
			if username, err := am.users.ValidateToken(token); err == nil {
				c.Set("username", username)
			}
		}
		c.Next()
	}
}
