package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/log"
)

// integrityHeader 标记本次响应的密文哈希校验结果.
const integrityHeader = "X-File-Integrity"

// serveRetrieval 把解密结果写入响应并清理明文临时文件.
func serveRetrieval(c *gin.Context, ret *service.Retrieval, asAttachment bool) {
	defer ret.Cleanup()

	if ret.Verified {
		c.Header(integrityHeader, "verified")
	} else {
		c.Header(integrityHeader, "failed")
	}

	c.Header("Content-Type", ret.ContentType)

	if asAttachment {
		c.FileAttachment(ret.Path, ret.FileName)
		return
	}

	c.File(ret.Path)
}

// ViewFile 在线查看文件（inline）.
//
//	@Summary		查看文件
//	@Description	解密后内联返回明文，响应头 X-File-Integrity 标记校验结果
//	@Tags			文件
//	@Produce		octet-stream
//	@Param			id	path	string	true	"文件 ID"
//	@Success		200	{file}	file
//	@Failure		410	{object}	map[string]string	"文件已删除或过期"
//	@Router			/api/v1/files/{id}/view [get]
func ViewFile(c *gin.Context) {
	retrieveFile(c, service.ModeView)
}

// DownloadFile 下载文件（attachment，带原始文件名）.
//
//	@Summary		下载文件
//	@Tags			文件
//	@Produce		octet-stream
//	@Param			id	path	string	true	"文件 ID"
//	@Success		200	{file}	file
//	@Router			/api/v1/files/{id}/download [get]
func DownloadFile(c *gin.Context) {
	retrieveFile(c, service.ModeDownload)
}

func retrieveFile(c *gin.Context, mode string) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	ret, err := svc.Retrieve(c.Request.Context(), user, c.Param("id"), mode)
	if err != nil {
		log.Logger().Warn().Err(err).Str("user", user).Str("mode", mode).Msg("retrieve failed")
		writeServiceError(c, err)

		return
	}

	serveRetrieval(c, ret, mode == service.ModeDownload)
}
