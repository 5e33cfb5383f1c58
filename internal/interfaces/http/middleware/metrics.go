package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"scholar-ai-api/pkg/metrics"
)

// Metrics HTTP 请求计数与耗时；未匹配路由归为 unmatched，探活接口不计入
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if isProbePath(path) {
			c.Next()
			return
		}
		if path == "" {
			path = "unmatched"
		}

		start := time.Now()
		c.Next()

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
