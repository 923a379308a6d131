package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/store"
)

// RateLimiter limits requests per client IP with counters in the store. The
// live feed gets a tighter limit than the rest of the API.
func RateLimiter(s store.Store, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if c.Request.URL.Path == "/api/ws" {
			handleRateLimit(c, s, log, "rate_limit:ws:"+clientIP, 5, time.Minute)
			return
		}
		handleRateLimit(c, s, log, "rate_limit:api:"+clientIP, 60, time.Minute)
	}
}

func handleRateLimit(c *gin.Context, s store.Store, log *zap.Logger, key string, limit int, window time.Duration) {
	count, err := s.Incr(c.Request.Context(), key, window)
	if err != nil {
		// fail open on store errors
		log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		c.Next()
		return
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

	if count > int64(limit) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "too many requests, please try again later",
		})
		return
	}

	c.Next()
}
