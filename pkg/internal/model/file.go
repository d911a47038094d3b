// Package model 定义数据库模型.
package model

import (
	"time"
)

// 密文存放位置.
const (
	StorageLocal  = "local"  // 只有本地缓存副本
	StorageRemote = "remote" // 有远端权威副本，本地可被逐出
)

// File 文件模型. Size 记录明文大小（配额按明文计）；
// 密文哈希与 IV 是解密和校验的唯一依据，丢失即文件不可恢复.
type File struct {
	ID string `gorm:"primaryKey;size:64" json:"id"`
	// 上传时的原始文件名，仅用于展示与下载响应头
	OriginalName string `gorm:"size:512"                  json:"original_name"`
	// 磁盘与对象存储中使用的随机名，全局唯一
	StoredName  string `gorm:"size:128;uniqueIndex"      json:"stored_name"`
	Size        int64  `gorm:"index"                     json:"size"`
	ContentType string `gorm:"size:255"                  json:"content_type"`
	// AES-GCM nonce，加密时随机生成，与密文分开保存
	IV []byte `gorm:"size:16"                   json:"-"`
	// 密文的 SHA-256 十六进制哈希，加密后计算
	ContentHash string `gorm:"size:64"                   json:"-"`
	OwnerID     string `gorm:"size:255;index"            json:"owner_id"`
	TeamID      string `gorm:"size:64;index"             json:"team_id,omitempty"`
	IsTeamFile  bool   `json:"is_team_file"`
	// 软删除标记. 显式布尔而非 gorm.DeletedAt，删除语义由 service 层控制
	IsDeleted bool       `gorm:"index;default:false"       json:"-"`
	ExpiresAt *time.Time `gorm:"index"                     json:"expires_at,omitempty"`
	// local 或 remote，决定检索时是否可能需要远端拉取
	StorageLocation string `gorm:"size:16"                   json:"storage_location"`
	// 远端对象键，仅 StorageLocation 为 remote 时有值
	RemoteKey string    `gorm:"size:1024"                 json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired 判断文件是否超过保留期.
func (f *File) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && !f.ExpiresAt.After(now)
}
