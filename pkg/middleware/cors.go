package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/configs"
)

// CORSMiddleware CORS中间件.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}

	config.AllowFiles = true
	// 浏览器默认读不到自定义响应头，密文校验结果需要显式暴露
	config.ExposeHeaders = []string{"X-File-Integrity", "Content-Disposition"}

	if cfg.Debug {
		config.AllowAllOrigins = true
	}

	return cors.New(config)
}
