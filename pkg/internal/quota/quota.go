// Package quota 实现团队存储配额记账.
// 用量变更只通过条件 UPDATE 完成，预留和释放在数据库层原子执行，
// 并发上传不会超出配额.
package quota

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/metrics"
)

// ErrQuotaExceeded 配额不足.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// ErrTeamNotFound 团队不存在.
var ErrTeamNotFound = errors.New("team not found")

// Ledger 配额账本，建立在团队表之上.
type Ledger struct {
	db *gorm.DB
}

// NewLedger 构建账本.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Reserve 原子预留 size 字节. 超出配额时不产生任何变更并返回 ErrQuotaExceeded.
func (l *Ledger) Reserve(ctx context.Context, teamID string, size int64) error {
	if size < 0 {
		return fmt.Errorf("invalid reserve size: %d", size)
	}

	res := l.db.WithContext(ctx).
		Model(&model.Team{}).
		Where("id = ? AND current_usage + ? <= storage_quota", teamID, size).
		Update("current_usage", gorm.Expr("current_usage + ?", size))
	if res.Error != nil {
		return fmt.Errorf("reserve quota: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// 区分团队不存在和配额不足
		var count int64
		if err := l.db.WithContext(ctx).
			Model(&model.Team{}).
			Where("id = ?", teamID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("check team: %w", err)
		}

		if count == 0 {
			return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
		}

		metrics.QuotaRejections.Inc()

		return fmt.Errorf("%w: team %s needs %d bytes", ErrQuotaExceeded, teamID, size)
	}

	return nil
}

// Release 归还 size 字节. 用量在零处截断，不会出现负值.
func (l *Ledger) Release(ctx context.Context, teamID string, size int64) error {
	if size < 0 {
		return fmt.Errorf("invalid release size: %d", size)
	}

	res := l.db.WithContext(ctx).
		Model(&model.Team{}).
		Where("id = ?", teamID).
		Update("current_usage", gorm.Expr(
			"CASE WHEN current_usage >= ? THEN current_usage - ? ELSE 0 END", size, size))
	if res.Error != nil {
		return fmt.Errorf("release quota: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	return nil
}

// Usage 返回团队当前用量与配额.
func (l *Ledger) Usage(ctx context.Context, teamID string) (used, limit int64, err error) {
	var team model.Team
	if err := l.db.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
		}

		return 0, 0, fmt.Errorf("load team: %w", err)
	}

	return team.CurrentUsage, team.StorageQuota, nil
}

// IsActiveMember 判断用户是否是团队的活跃成员.
func (l *Ledger) IsActiveMember(ctx context.Context, teamID, userID string) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("team_id = ? AND user_id = ? AND status = ?", teamID, userID, model.MemberStatusActive).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}

	return count > 0, nil
}
