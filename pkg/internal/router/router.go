// Package router 管理路由配置，将路径绑定到 pkg/internal/handle 的处理器.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/handle"
)

// RegisterAPIRoutes 注册 /api/v1 下的全部业务路由.
func RegisterAPIRoutes(engine *gin.Engine) {
	engine.NoRoute(handle.DefaultHandler)

	api := engine.Group("/api/v1")

	RegisterFilesRoutes(api)
	RegisterSharesRoutes(api)
	RegisterPublicRoutes(api)
	RegisterHealthCheckRoute(api)
	RegisterSchedulerRoutes(api)
}
