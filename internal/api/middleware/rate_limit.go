package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/ratelimit"
	"github.com/yoockh/convopilot/internal/utils"
)

// RateLimit throttles by client IP under the given bucket name. Every
// attempt counts, successful or not, until the window rolls over. A limiter
// failure lets the request through.
func RateLimit(l ratelimit.Limiter, bucket string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bucket + ":" + c.ClientIP()

		res, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.WithError(err).WithField("bucket", bucket).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			retry := int(time.Until(res.ResetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apiError{
				Code:    utils.CodeRateLimited,
				Message: "too many attempts, try again later",
			})
			return
		}

		c.Next()
	}
}
