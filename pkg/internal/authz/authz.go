// Package authz 计算用户对文件的权限掩码.
// 权限每次访问实时计算，不缓存判定结果.
package authz

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeisme/filevault/pkg/internal/model"
)

// Mask 单个用户对单个文件的操作权限.
type Mask struct {
	CanView     bool
	CanDownload bool
	CanDelete   bool
}

// Full 所有者或活跃团队成员的完整权限.
func Full() Mask {
	return Mask{CanView: true, CanDownload: true, CanDelete: true}
}

// None 无权限.
func None() Mask {
	return Mask{}
}

// Authorizer 权限判定接口.
type Authorizer interface {
	// FilePermissions 计算用户对文件的权限掩码.
	FilePermissions(ctx context.Context, user string, file *model.File) (Mask, error)
}

// DBAuthorizer 基于数据库关系的权限判定：
// 所有者拥有完整权限；团队文件的活跃成员拥有完整权限；其他人无权限.
type DBAuthorizer struct {
	db *gorm.DB
}

// NewDBAuthorizer 构建判定器.
func NewDBAuthorizer(db *gorm.DB) *DBAuthorizer {
	return &DBAuthorizer{db: db}
}

// FilePermissions 实现 Authorizer.
func (a *DBAuthorizer) FilePermissions(ctx context.Context, user string, file *model.File) (Mask, error) {
	if user != "" && user == file.OwnerID {
		return Full(), nil
	}

	if file.IsTeamFile && file.TeamID != "" && user != "" {
		var count int64
		if err := a.db.WithContext(ctx).
			Model(&model.TeamMember{}).
			Where("team_id = ? AND user_id = ? AND status = ?", file.TeamID, user, model.MemberStatusActive).
			Count(&count).Error; err != nil {
			return None(), fmt.Errorf("check team membership: %w", err)
		}

		if count > 0 {
			return Full(), nil
		}
	}

	return None(), nil
}
