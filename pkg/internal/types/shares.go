package types

import "time"

// CreateShareRequest 创建分享所需参数.
type CreateShareRequest struct {
	// FileID 要分享的文件
	FileID string `json:"file_id" binding:"required"`
	// CanView 是否允许在线查看
	CanView *bool `json:"can_view"`
	// CanDownload 是否允许下载原文件
	CanDownload *bool `json:"can_download"`
	// ExpirationDays 分享有效天数；>0 则按天计算过期时间，<=0 表示不过期
	ExpirationDays int `json:"expiration_days"`
	// IsPrivate 私有分享，只有 RecipientIDs 中的已认证用户可访问
	IsPrivate bool `json:"is_private"`
	// RecipientIDs 私有分享的接收者用户列表
	RecipientIDs []string `json:"recipient_ids"`
}

// UpdateShareRequest 更新分享参数，空指针字段保持不变.
type UpdateShareRequest struct {
	CanView        *bool    `json:"can_view"`
	CanDownload    *bool    `json:"can_download"`
	ExpirationDays *int     `json:"expiration_days"`
	IsPrivate      *bool    `json:"is_private"`
	RecipientIDs   []string `json:"recipient_ids"`
}

// ShareInfo 分享的对外信息.
type ShareInfo struct {
	// ID 分享唯一标识
	ID string `json:"id"`
	// ShareToken 访问令牌，仅创建者可见完整值
	ShareToken string `json:"share_token,omitempty"`
	// ShareURL 拼接好的公开访问地址
	ShareURL string `json:"share_url,omitempty"`
	// FileID 被分享的文件
	FileID string `json:"file_id"`
	// CreatedByID 分享创建者
	CreatedByID string `json:"created_by_id"`
	CanView     bool   `json:"can_view"`
	CanDownload bool   `json:"can_download"`
	IsActive    bool   `json:"is_active"`
	IsPrivate   bool   `json:"is_private"`
	// RecipientIDs 私有分享接收者
	RecipientIDs []string `json:"recipient_ids,omitempty"`
	// ExpiresAt 过期时间（UTC，可为空表示不过期）
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// AccessCount 成功访问次数
	AccessCount int64     `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateShareResponse 创建分享的响应体.
type CreateShareResponse struct {
	Share ShareInfo `json:"share"`
}

// ListSharesResponse 分享列表响应体.
type ListSharesResponse struct {
	Shares []ShareInfo `json:"shares"`
}

// PublicShareInfo 公开查询分享状态的响应体.
// 即使分享不可用也返回状态字段，便于前端给出准确提示.
type PublicShareInfo struct {
	ID          string     `json:"id"`
	FileName    string     `json:"file_name,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	CanView     bool       `json:"can_view"`
	CanDownload bool       `json:"can_download"`
	IsActive    bool       `json:"is_active"`
	IsPrivate   bool       `json:"is_private"`
	Expired     bool       `json:"expired"`
	FileDeleted bool       `json:"file_deleted"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	AccessCount int64      `json:"access_count"`
}

// RevokeShareResponse 吊销分享的响应体.
type RevokeShareResponse struct {
	ID      string `json:"id"`
	Revoked bool   `json:"revoked"`
}
