package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-relay/internal/observability"
)

// RateLimitConfig configures the rate limiter
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyPrefix         string
	Message           string
}

// DefaultRateLimitConfig returns the limits applied to auth and invite routes.
func DefaultRateLimitConfig(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 30
	}
	return RateLimitConfig{
		RequestsPerMinute: perMinute,
		KeyPrefix:         "chat:ratelimit:",
		Message:           "Too many requests, try again shortly",
	}
}

// sliding window over a sorted set, one entry per request
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local reset_at = 0
if #oldest >= 2 then
    reset_at = tonumber(oldest[2]) + window
end
return {0, 0, reset_at}
`)

// RateLimit limits requests per client IP and route. A nil client or a
// Redis error lets the request through.
func RateLimit(redisClient *redis.Client, cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := cfg.KeyPrefix + route + ":" + c.ClientIP()

		now := time.Now().UnixMilli()
		windowMs := int64(60 * 1000)

		result, err := rateLimitScript.Run(c.Request.Context(), redisClient, []string{key},
			cfg.RequestsPerMinute, windowMs, now,
		).Int64Slice()
		if err != nil || len(result) < 3 {
			logger.Warn("rate limit check failed, allowing request", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		allowed := result[0] == 1
		remaining := result[1]
		resetAt := result[2]

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			retryAfter := (resetAt - now) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}
			observability.IncRateLimited(route)
			c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt/1000, 10))
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": cfg.Message})
			return
		}

		c.Next()
	}
}
