package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/log"
)

// PublicShareInfo 查询分享状态，无需认证.
//
//	@Summary		分享状态
//	@Description	分享被吊销或过期时仍返回状态字段，便于前端给出准确提示
//	@Tags			公开分享
//	@Produce		json
//	@Param			token	path		string	true	"分享令牌"
//	@Success		200		{object}	types.PublicShareInfo
//	@Failure		404		{object}	map[string]string	"令牌不存在"
//	@Router			/api/v1/public/shares/{token} [get]
func PublicShareInfo(c *gin.Context) {
	svc := service.NewVaultService(c.Request.Context())

	info, err := svc.PublicShareInfo(c.Request.Context(), c.Param("token"), optionalUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// PublicShareView 通过分享令牌在线查看文件.
//
//	@Summary		通过分享查看文件
//	@Tags			公开分享
//	@Produce		octet-stream
//	@Param			token	path	string	true	"分享令牌"
//	@Success		200		{file}	file
//	@Failure		410		{object}	map[string]string	"分享或文件不可用"
//	@Router			/api/v1/public/shares/{token}/view [get]
func PublicShareView(c *gin.Context) {
	accessShare(c, service.ModeView)
}

// PublicShareDownload 通过分享令牌下载文件.
//
//	@Summary		通过分享下载文件
//	@Tags			公开分享
//	@Produce		octet-stream
//	@Param			token	path	string	true	"分享令牌"
//	@Success		200		{file}	file
//	@Router			/api/v1/public/shares/{token}/download [get]
func PublicShareDownload(c *gin.Context) {
	accessShare(c, service.ModeDownload)
}

// PrivateShareView 在线查看私有分享，访问者必须在名单内.
//
//	@Summary		查看私有分享
//	@Tags			分享
//	@Produce		octet-stream
//	@Param			token	path	string	true	"分享令牌"
//	@Success		200		{file}	file
//	@Failure		403		{object}	map[string]string	"不在接收人名单"
//	@Router			/api/v1/shares/private/{token}/view [get]
func PrivateShareView(c *gin.Context) {
	privateAccessShare(c, service.ModeView)
}

// PrivateShareDownload 下载私有分享的文件.
//
//	@Summary		下载私有分享
//	@Tags			分享
//	@Produce		octet-stream
//	@Param			token	path	string	true	"分享令牌"
//	@Success		200		{file}	file
//	@Router			/api/v1/shares/private/{token}/download [get]
func PrivateShareDownload(c *gin.Context) {
	privateAccessShare(c, service.ModeDownload)
}

// privateAccessShare 与 accessShare 相同的判定链，但要求已认证身份.
func privateAccessShare(c *gin.Context, mode string) {
	user, err := checkUser(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc := service.NewVaultService(c.Request.Context())

	ret, err := svc.AccessShare(c.Request.Context(), c.Param("token"), user, mode)
	if err != nil {
		log.Logger().Warn().Err(err).Str("mode", mode).Str("user", user).Msg("private share access rejected")
		writeServiceError(c, err)

		return
	}

	serveRetrieval(c, ret, mode == service.ModeDownload)
}

func accessShare(c *gin.Context, mode string) {
	svc := service.NewVaultService(c.Request.Context())

	ret, err := svc.AccessShare(c.Request.Context(), c.Param("token"), optionalUser(c), mode)
	if err != nil {
		log.Logger().Warn().Err(err).Str("mode", mode).Msg("share access rejected")
		writeServiceError(c, err)

		return
	}

	serveRetrieval(c, ret, mode == service.ModeDownload)
}
