package middleware

import (
	"net/http"
	"strconv"
	"time"

	"sop-assistant/internal/logger"
	"sop-assistant/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware implements fixed-window rate limiting in Redis, keyed
// by client IP and route. Redis errors let the request through.
func RateLimitMiddleware(rdb *redis.Client, limit, windowSeconds int) gin.HandlerFunc {
	window := time.Duration(windowSeconds) * time.Second
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 || c.FullPath() == "/health" {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + ":" + c.FullPath()
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "error", err, "path", c.FullPath())
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if count > int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))
			utils.RespondWithError(c, http.StatusTooManyRequests,
				"rate_limit_exceeded",
				"請求過於頻繁，請稍後再試。",
				gin.H{
					"retry_after": windowSeconds,
					"limit":       limit,
				})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
		c.Next()
	}
}
