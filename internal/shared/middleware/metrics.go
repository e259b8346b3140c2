package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/F3nrir-00/gaming-library-tracker/internal/infrastructure/metrics"
)

// Metrics observes latency by route template, so ids do not explode the
// label set.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
