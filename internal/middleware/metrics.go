package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/school-api/internal/service"
)

// Metrics observes every request on the Prometheus collectors. The route
// template is preferred over the raw path so IDs don't explode cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
