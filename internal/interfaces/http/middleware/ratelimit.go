package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/autopay/internal/infrastructure/ratelimit"
	"github.com/orris-inc/autopay/internal/shared/logger"
	"github.com/orris-inc/autopay/internal/shared/utils"
)

type rateLimiter interface {
	Allow(ctx context.Context, key string, limits ratelimit.Limits) (ratelimit.Decision, error)
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limiter rateLimiter
	limits  ratelimit.Limits
	logger  logger.Interface
}

func NewRateLimiter(limiter rateLimiter, limits ratelimit.Limits, logger logger.Interface) *RateLimiter {
	return &RateLimiter{limiter: limiter, limits: limits, logger: logger}
}

// Limit rejects with 429 and Retry-After once the client exhausts a
// window. Redis failures let the request through.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limits.Enabled() {
			c.Next()
			return
		}

		decision, err := rl.limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP(), rl.limits)
		if err != nil {
			rl.logger.Warnw("rate limiter unavailable, allowing request",
				"path", c.Request.URL.Path,
				"error", err,
			)
			c.Next()
			return
		}

		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
