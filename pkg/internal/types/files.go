// Package types 定义 API 请求与响应结构.
package types

import "time"

// FileInfo 文件的对外信息，不暴露 IV 与密文哈希.
type FileInfo struct {
	// ID 文件唯一标识
	ID string `json:"id"`
	// OriginalName 上传时的文件名
	OriginalName string `json:"original_name"`
	// Size 明文大小（字节）
	Size int64 `json:"size"`
	// ContentType 上传时声明的 MIME 类型
	ContentType string `json:"content_type"`
	// OwnerID 上传者
	OwnerID string `json:"owner_id"`
	// TeamID 团队文件所属团队
	TeamID string `json:"team_id,omitempty"`
	// IsTeamFile 是否为团队文件
	IsTeamFile bool `json:"is_team_file"`
	// StorageLocation 密文所在层（local/remote）
	StorageLocation string `json:"storage_location"`
	// ExpiresAt 保留期截止时间（UTC，可为空表示永久）
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// CreatedAt 上传时间（UTC）
	CreatedAt time.Time `json:"created_at"`
}

// UploadFileRequest 上传文件的表单参数，文件本体由 multipart 字段 file 承载.
type UploadFileRequest struct {
	// TeamID 指定后按团队配额记账并归为团队文件
	TeamID string `form:"team_id" json:"team_id"`
}

// UploadFileResponse 上传响应体.
type UploadFileResponse struct {
	File FileInfo `json:"file"`
}

// ListFilesResponse 文件列表响应体.
type ListFilesResponse struct {
	// Files 当前用户可见的文件（不含已删除）
	Files []FileInfo `json:"files"`
	Total int64      `json:"total"`
}

// VerifyFileResponse 完整性校验响应体.
type VerifyFileResponse struct {
	ID string `json:"id"`
	// Verified 密文哈希是否与记录一致
	Verified bool `json:"verified"`
	// ExpectedHash 记录中的密文哈希
	ExpectedHash string `json:"expected_hash"`
	// ActualHash 实际计算出的密文哈希
	ActualHash string `json:"actual_hash"`
}

// DeleteFileResponse 删除响应体.
type DeleteFileResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
