package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/filevault/pkg/configs"
)

// limiterEntry 记录 limiter 与最近一次使用时间，供闲置清理.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware 返回一个基于配置的限流中间件.
// 维度可选 global、user（已认证用户，回退到 IP）、ip.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	if keyMode == "global" || keyMode == "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

		return func(c *gin.Context) {
			if !limiter.Allow() {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
				return
			}

			c.Next()
		}
	}

	var (
		mu      sync.Mutex
		entries = map[string]*limiterEntry{}
	)

	getLimiter := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if e, ok := entries[key]; ok {
			e.lastSeen = time.Now()
			return e.limiter
		}

		e := &limiterEntry{
			limiter:  rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
			lastSeen: time.Now(),
		}
		entries[key] = e

		return e.limiter
	}

	// 后台逐出闲置 limiter
	go func() {
		const (
			cleanupInterval = 10 * time.Minute
			idleAfter       = 30 * time.Minute
		)

		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			cutoff := time.Now().Add(-idleAfter)

			mu.Lock()
			for key, e := range entries {
				if e.lastSeen.Before(cutoff) {
					delete(entries, key)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		var key string

		if keyMode == "user" {
			// 认证中间件桥接后的用户标识；匿名请求按 IP 限
			key = c.GetHeader("X-User")
		}

		if key == "" {
			key = clientIP(c)
		}

		if key == "" {
			key = "unknown"
		}

		if !getLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded, please try again later"})

			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	return ip
}
