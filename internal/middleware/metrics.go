package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/metrics"
)

// Metrics records request counts and latency per route template, so /api/studies/1
// and /api/studies/2 share one series.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
