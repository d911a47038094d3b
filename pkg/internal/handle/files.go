package handle

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/internal/types"
	"github.com/yeisme/filevault/pkg/log"
)

// UploadFile 接收 multipart 上传并加密入库.
//
//	@Summary		上传并加密文件
//	@Description	文件在服务端加密后写入两级存储，可选 team_id 按团队配额记账
//	@Tags			文件
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file						true	"文件内容"
//	@Param			team_id	formData	string						false	"团队 ID"
//	@Success		200		{object}	types.UploadFileResponse	"文件元数据"
//	@Failure		400		{object}	map[string]string			"请求参数错误"
//	@Failure		413		{object}	map[string]string			"文件超过大小上限"
//	@Router			/api/v1/files [post]
func UploadFile(c *gin.Context) {
	l := log.Logger()

	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req types.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		l.Warn().Err(err).Msg("invalid upload form")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	// 明文先落暂存目录，加密完成后由 service 删除
	staged := filepath.Join(os.TempDir(), fmt.Sprintf("fv-upload-%d-%s", time.Now().UnixNano(), filepath.Base(fh.Filename)))
	if err := c.SaveUploadedFile(fh, staged); err != nil {
		l.Error().Err(err).Msg("save uploaded file failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save uploaded file failed"})

		return
	}

	resp, err := svc.Upload(c.Request.Context(), user, &service.UploadParams{
		PlainPath:    staged,
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         fh.Size,
		TeamID:       req.TeamID,
	})
	if err != nil {
		l.Warn().Err(err).Str("user", user).Msg("upload failed")
		writeServiceError(c, err)

		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListFiles 列出当前用户可见的文件.
//
//	@Summary		文件列表
//	@Description	返回用户自己的文件与所在团队的团队文件，不含已删除
//	@Tags			文件
//	@Produce		json
//	@Success		200	{object}	types.ListFilesResponse
//	@Router			/api/v1/files [get]
func ListFiles(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	resp, err := svc.ListFiles(c.Request.Context(), user)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetFile 获取单个文件的元数据.
//
//	@Summary		文件详情
//	@Tags			文件
//	@Produce		json
//	@Param			id	path		string	true	"文件 ID"
//	@Success		200	{object}	types.FileInfo
//	@Failure		404	{object}	map[string]string	"文件不存在"
//	@Router			/api/v1/files/{id} [get]
func GetFile(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	info, err := svc.GetFile(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// VerifyFile 校验密文完整性.
//
//	@Summary		完整性校验
//	@Description	重新计算密文哈希并与上传时记录对比
//	@Tags			文件
//	@Produce		json
//	@Param			id	path		string	true	"文件 ID"
//	@Success		200	{object}	types.VerifyFileResponse
//	@Router			/api/v1/files/{id}/verify [get]
func VerifyFile(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	resp, err := svc.VerifyFile(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteFile 软删除文件.
//
//	@Summary		删除文件
//	@Description	软删除并释放团队配额，重复删除幂等
//	@Tags			文件
//	@Produce		json
//	@Param			id	path		string	true	"文件 ID"
//	@Success		200	{object}	types.DeleteFileResponse
//	@Failure		403	{object}	map[string]string	"无删除权限"
//	@Router			/api/v1/files/{id} [delete]
func DeleteFile(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	resp, err := svc.DeleteFile(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
