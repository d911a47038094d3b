package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/internal/types"
	"github.com/yeisme/filevault/pkg/log"
)

// CreateShare 创建分享链接.
//
//	@Summary		创建分享
//	@Description	为文件生成不可猜测的分享令牌，支持私有名单与有效期
//	@Tags			分享
//	@Accept			json
//	@Produce		json
//	@Param			share	body		types.CreateShareRequest	true	"分享参数"
//	@Success		200		{object}	types.CreateShareResponse
//	@Failure		403		{object}	map[string]string	"无文件权限"
//	@Router			/api/v1/shares [post]
func CreateShare(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req types.CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Logger().Warn().Err(err).Msg("invalid share request")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	svc := service.NewVaultService(c.Request.Context())

	resp, err := svc.CreateShare(c.Request.Context(), user, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListShares 列出当前用户创建的分享.
//
//	@Summary		分享列表
//	@Tags			分享
//	@Produce		json
//	@Success		200	{object}	types.ListSharesResponse
//	@Router			/api/v1/shares [get]
func ListShares(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	// 可选按文件过滤
	if fileID := c.Query("file_id"); fileID != "" {
		resp, err := svc.ListSharesByFile(c.Request.Context(), user, fileID)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)

		return
	}

	resp, err := svc.ListShares(c.Request.Context(), user)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListFileShares 列出某个文件的全部分享.
//
//	@Summary		文件的分享列表
//	@Description	需要文件查看权限；非创建者看不到分享令牌
//	@Tags			分享
//	@Produce		json
//	@Param			fileId	path		string	true	"文件 ID"
//	@Success		200		{object}	types.ListSharesResponse
//	@Router			/api/v1/shares/file/{fileId} [get]
func ListFileShares(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	resp, err := svc.ListSharesByFile(c.Request.Context(), user, c.Param("fileId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateShare 更新分享参数.
//
//	@Summary		更新分享
//	@Description	仅创建者可更新，未提供的字段保持不变
//	@Tags			分享
//	@Accept			json
//	@Produce		json
//	@Param			shareId	path		string						true	"分享 ID"
//	@Param			share	body		types.UpdateShareRequest	true	"要更新的字段"
//	@Success		200		{object}	types.ShareInfo
//	@Router			/api/v1/shares/{shareId} [put]
func UpdateShare(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req types.UpdateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	info, err := svc.UpdateShare(c.Request.Context(), user, c.Param("shareId"), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// RevokeShare 吊销分享.
//
//	@Summary		吊销分享
//	@Description	吊销立即生效，后续访问一律拒绝
//	@Tags			分享
//	@Produce		json
//	@Param			shareId	path		string	true	"分享 ID"
//	@Success		200		{object}	types.RevokeShareResponse
//	@Router			/api/v1/shares/{shareId} [delete]
func RevokeShare(c *gin.Context) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	resp, err := svc.RevokeShare(c.Request.Context(), user, c.Param("shareId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
