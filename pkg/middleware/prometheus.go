package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/metrics"
)

// PrometheusMiddleware Prometheus监控中间件.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// 用路由模板而非原始路径，避免按 ID 散开的高基数标签
		path := c.FullPath()
		method := c.Request.Method

		metrics.ActiveConnections.Inc()

		// 执行下一个中间件/处理器
		c.Next()

		metrics.ActiveConnections.Dec()

		if path == "" {
			path = "unmatched"
		}

		// 记录请求计数
		metrics.RequestCounter.WithLabelValues(method, path).Inc()

		// 记录请求持续时间
		duration := time.Since(start).Seconds()
		metrics.RequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
