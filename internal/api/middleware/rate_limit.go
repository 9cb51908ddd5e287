package middleware

import (
	"fmt"
	"net/http"
	"time"

	"chat-relay/internal/service"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles requests with redis fixed-window
// counters. Constructed with a nil service it disables itself, so the
// server still runs without redis.
type RateLimitMiddleware struct {
	redisService *service.RedisService
}

func NewRateLimitMiddleware(redisService *service.RedisService) *RateLimitMiddleware {
	return &RateLimitMiddleware{redisService: redisService}
}

// RateLimitIP throttles by client IP, for the unauthenticated auth
// routes and the websocket upgrade.
func (rm *RateLimitMiddleware) RateLimitIP(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rm.redisService == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.Request.URL.Path)
		allowed, err := rm.redisService.CheckRateLimit(c.Request.Context(), key, requests, window)
		if err != nil {
			// Rate limiting is protection, not a dependency: let the
			// request through when redis is unreachable.
			c.Next()
			return
		}
		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "rate limit exceeded",
				fmt.Sprintf("limit: %d per %v", requests, window))
			return
		}
		c.Next()
	}
}
