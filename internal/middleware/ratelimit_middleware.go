package middleware

import (
	"net/http"
	"strconv"

	"classpoll/internal/redis"
	"classpoll/internal/transport/httpdto"
	classpoll_errors "classpoll/pkg/errors"
	"classpoll/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware limits requests per client IP. A nil limiter lets
// everything through. Redis failures fail open.
func RateLimitMiddleware(limiter *redis.RateLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowRequest(c.Request.Context(), c.ClientIP())
		if err != nil {
			if l != nil {
				l.WithContext(c.Request.Context()).Warn("rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(classpoll_errors.PublicMessage(classpoll_errors.ErrRateLimited), "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
