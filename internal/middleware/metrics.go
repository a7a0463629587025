package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SyedDaiam9101/diagnosis-service/internal/metrics"
)

// Metrics records Prometheus histogram metrics for HTTP requests.
// It measures the duration of each request and records it with method, route
// and status code labels.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Unmatched paths share one label to keep cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordHTTPLatency(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
