package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/handle"
)

// RegisterFilesRoutes 注册文件操作相关路由.
func RegisterFilesRoutes(g *gin.RouterGroup) {
	// 文件操作路由
	filesRoutes := g.Group("/files")
	{
		// 上传并加密
		filesRoutes.POST("", handle.UploadFile)
		// 列出可见文件
		filesRoutes.GET("", handle.ListFiles)

		// 单个文件操作
		singleGroup := filesRoutes.Group("/:id")
		{
			// 文件元数据
			singleGroup.GET("", handle.GetFile)
			// 软删除
			singleGroup.DELETE("", handle.DeleteFile)
			// 在线查看（inline）
			singleGroup.GET("/view", handle.ViewFile)
			// 下载（attachment）
			singleGroup.GET("/download", handle.DownloadFile)
			// 密文完整性校验（只读，不修改记录）
			singleGroup.GET("/verify", handle.VerifyFile)
		}
	}
}
