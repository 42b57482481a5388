package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/tagdrop/pkg/metrics"
)

// unmatchedRoute 没有命中路由时的 endpoint 标签.
const unmatchedRoute = "unmatched"

// PrometheusMiddleware 按路由模板（如 /tags/:tag/files/:filename）记录请求数、耗时与响应字节数.
// 使用模板而不是原始路径，标签 ID 与文件名不会进入指标标签.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}

		method, code := c.Request.Method, strconv.Itoa(c.Writer.Status())

		metrics.RequestCounter.WithLabelValues(method, route, code).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		if n := c.Writer.Size(); n > 0 {
			metrics.ResponseBytes.WithLabelValues(route).Add(float64(n))
		}
	}
}
