package middleware

import (
	"github.com/gin-gonic/gin"
	"shop-assistant-go/pkg/metrics"
	"strconv"
	"time"
)

// Metrics 记录每个请求的次数与耗时，path 标签取路由模板。
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
