// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/broker"
	"github.com/yeisme/filevault/pkg/internal/quota"
	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/rule"
)

// DefaultHandler 兜底处理未注册的路径，保证 404 也返回 JSON.
func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func checkUser(c *gin.Context) (string, error) {
	// 提取用户名：Header 优先 -> query 参数 -> 默认 test-user（便于测试）
	user := c.GetHeader("X-User")
	if user == "" {
		user = c.Query("user")
	}
	// 测试默认值，不为 Release 模式时
	if user == "" && gin.Mode() != gin.ReleaseMode {
		user = "test-user@example.com"
	}

	user = strings.TrimSpace(user)

	// 使用 validator 验证用户名格式为 email
	if err := rule.ValidateVar(user, "required,email"); err != nil {
		return "", err
	}

	return user, nil
}

// optionalUser 提取用户但不强制：公开分享端点允许匿名访问.
func optionalUser(c *gin.Context) string {
	user := strings.TrimSpace(c.GetHeader("X-User"))
	if user == "" {
		user = strings.TrimSpace(c.Query("user"))
	}

	if user != "" {
		if err := rule.ValidateVar(user, "email"); err != nil {
			return ""
		}
	}

	return user
}

// writeServiceError 把 service 层哨兵错误映射为 HTTP 状态码.
func writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrExpired), errors.Is(err, service.ErrGone), errors.Is(err, service.ErrShareInactive):
		status = http.StatusGone
	case errors.Is(err, service.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, quota.ErrQuotaExceeded):
		status = http.StatusForbidden
	case errors.Is(err, broker.ErrRemoteFetch):
		status = http.StatusBadGateway
	}

	// 内部错误不向调用方暴露路径等细节，只留给运维日志
	if status == http.StatusInternalServerError {
		log.Logger().Error().Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})

		return
	}

	if status == http.StatusBadGateway {
		log.Logger().Error().Err(err).Msg("remote storage fetch failed")
		c.JSON(status, gin.H{"error": "remote storage unavailable"})

		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
