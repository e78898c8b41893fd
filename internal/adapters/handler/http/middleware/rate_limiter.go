package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript bumps the caller's counter and stamps the window TTL in
// one atomic round trip, so a crash between INCR and EXPIRE cannot leave an
// immortal counter behind.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {count, redis.call("TTL", KEYS[1])}
`)

// RateLimiterMiddleware throttles clients per IP with a fixed window counter
// in Redis. Redis failures fail open: a broken limiter must not take the API
// down.
func RateLimiterMiddleware(rdb *redis.Client, logger *zap.Logger, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rate_limit:" + c.ClientIP()

		count, ttl, err := bumpWindow(c.Request.Context(), rdb, key, window)
		if err != nil {
			logger.Warn("rate limiter skipped, redis error", zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))

		if count > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"message":    "Too many requests. Slow down!",
				"retry_in_s": int(ttl.Seconds()),
			})
			return
		}

		c.Next()
	}
}

func bumpWindow(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (count int64, ttl time.Duration, err error) {
	res, err := fixedWindowScript.Run(ctx, rdb, []string{key}, int(window.Seconds())).Result()
	if err != nil {
		return 0, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected script reply: %v", res)
	}

	count, _ = vals[0].(int64)
	seconds, _ := vals[1].(int64)
	if seconds < 0 {
		// TTL -1 means the key never got an expiry; treat it as a full window.
		seconds = int64(window.Seconds())
	}

	return count, time.Duration(seconds) * time.Second, nil
}
