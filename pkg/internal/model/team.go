package model

import "time"

// 团队成员状态.
const (
	MemberStatusActive  = "active"
	MemberStatusPending = "pending"
	MemberStatusRemoved = "removed"
)

// Team 团队模型. CurrentUsage 与 StorageQuota 为明文字节数，
// 用量变更只通过条件 UPDATE 进行，保证并发上传下不超卖.
type Team struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Name         string    `gorm:"size:255"           json:"name"`
	CurrentUsage int64     `gorm:"default:0"          json:"current_usage"`
	StorageQuota int64     `json:"storage_quota"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TeamMember 团队成员关系.
type TeamMember struct {
	ID        uint      `gorm:"primaryKey"                        json:"id"`
	TeamID    string    `gorm:"size:64;index:idx_team_user,unique" json:"team_id"`
	UserID    string    `gorm:"size:255;index:idx_team_user,unique" json:"user_id"`
	Status    string    `gorm:"size:32;default:active"            json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
