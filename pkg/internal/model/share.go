package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Share 分享数据库模型：以 DB 为真源，接收者列表以 JSON 文本存储以保持实现简单。
// 注意：后续如需按接收者查询/统计，可拆为 share_recipients 关联表。
type Share struct {
	ID string `gorm:"primaryKey;size:64"   json:"id"`
	// 不可猜测的访问令牌，公开链接的唯一凭据
	ShareToken  string `gorm:"size:64;uniqueIndex"  json:"share_token"`
	FileID      string `gorm:"size:64;index"        json:"file_id"`
	CreatedByID string `gorm:"size:255;index"       json:"created_by_id"`
	CanView     bool   `json:"can_view"`
	CanDownload bool   `json:"can_download"`
	IsActive    bool   `gorm:"default:true"         json:"is_active"`
	// 私有分享：只有接收者列表中的已认证用户可访问
	IsPrivate        bool       `json:"is_private"`
	RecipientIDsJSON string     `gorm:"type:text"            json:"-"`
	ExpiresAt        *time.Time `gorm:"index"                json:"expires_at,omitempty"`
	AccessCount      int64      `json:"access_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Recipients 反序列化接收者列表.
func (s *Share) Recipients() ([]string, error) {
	if s.RecipientIDsJSON == "" {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(s.RecipientIDsJSON), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal recipient_ids: %w", err)
	}

	return ids, nil
}

// SetRecipients 序列化接收者列表.
func (s *Share) SetRecipients(ids []string) error {
	if len(ids) == 0 {
		s.RecipientIDsJSON = ""
		return nil
	}

	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal recipient_ids: %w", err)
	}

	s.RecipientIDsJSON = string(b)

	return nil
}

// HasRecipient 判断用户是否在接收者列表中.
func (s *Share) HasRecipient(userID string) bool {
	ids, err := s.Recipients()
	if err != nil {
		return false
	}

	return slices.Contains(ids, userID)
}

// Expired 判断分享是否已过期.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
