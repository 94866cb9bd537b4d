package ratelimit

import (
	"math"
	"strconv"

	"github.com/Aidin1998/kycengine/common/apiutil"
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Middleware rejects requests from clients that exhausted their bucket
// with a 429 problem response. Clients are keyed by IP.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, wait := l.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
		if allowed {
			c.Next()
			return
		}

		seconds := int(math.Ceil(wait.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
		metrics.HTTPRateLimited.WithLabelValues(c.FullPath()).Inc()
		apiutil.WriteProblem(c, errors.RateLimited.Explain("rate limit exceeded, retry in %ds", seconds))
	}
}
