package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/handle"
)

// RegisterSharesRoutes 注册分享管理相关路由（需认证）.
func RegisterSharesRoutes(g *gin.RouterGroup) {
	// 文件分享路由
	sharesRoutes := g.Group("/shares")
	{
		sharesRoutes.POST("", handle.CreateShare)               // 创建分享链接
		sharesRoutes.GET("", handle.ListShares)                 // 分享列表，支持 ?file_id= 过滤
		sharesRoutes.GET("/file/:fileId", handle.ListFileShares) // 单个文件的分享
		sharesRoutes.PUT("/:shareId", handle.UpdateShare)       // 更新分享
		sharesRoutes.DELETE("/:shareId", handle.RevokeShare)    // 吊销分享

		// 私有分享需要已认证身份，名单校验在 service 层
		sharesRoutes.GET("/private/:token/view", handle.PrivateShareView)
		sharesRoutes.GET("/private/:token/download", handle.PrivateShareDownload)
	}
}

// RegisterPublicRoutes 注册公开分享访问路由（匿名可访问）.
func RegisterPublicRoutes(g *gin.RouterGroup) {
	publicRoutes := g.Group("/public/shares")
	{
		publicRoutes.GET("/:token", handle.PublicShareInfo)              // 分享状态
		publicRoutes.GET("/:token/view", handle.PublicShareView)         // 在线查看
		publicRoutes.GET("/:token/download", handle.PublicShareDownload) // 下载
	}
}
