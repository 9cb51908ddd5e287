package response

import "github.com/gin-gonic/gin"

// ErrorResponse is the REST error envelope.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error writes the envelope and aborts the request.
func Error(c *gin.Context, status int, message, details string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    status,
		Message: message,
		Details: details,
	})
}
