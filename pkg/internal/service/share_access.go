package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/types"
	nlog "github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/queue"
)

// AccessShare 通过分享令牌访问文件. accessor 为空表示匿名访问.
//
// 判定按固定顺序执行：令牌存在 -> 分享启用 -> 文件存在且未删除 ->
// 分享未过期 -> 私有名单 -> 操作权限.
// 顺序保证同一状态组合总是返回同一个错误.
func (s *VaultService) AccessShare(ctx context.Context, token, accessor, mode string) (*Retrieval, error) {
	if mode != ModeView && mode != ModeDownload {
		return nil, fmt.Errorf("%w: unknown access mode %q", ErrValidation, mode)
	}

	share, err := s.getShareByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if !share.IsActive {
		return nil, fmt.Errorf("%w: share %s", ErrShareInactive, share.ID)
	}

	file, err := s.loadSharedFile(ctx, share.FileID)
	if err != nil {
		return nil, err
	}

	// 过期时点取访问发生的时刻，判定后不再复查
	if share.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: share %s", ErrExpired, share.ID)
	}

	if share.IsPrivate {
		if accessor == "" {
			return nil, fmt.Errorf("%w: private share requires authentication", ErrForbidden)
		}

		if !share.HasRecipient(accessor) {
			return nil, fmt.Errorf("%w: not a share recipient", ErrForbidden)
		}
	}

	allowed := (mode == ModeView && share.CanView) || (mode == ModeDownload && share.CanDownload)
	if !allowed {
		return nil, fmt.Errorf("%w: share does not permit %s", ErrForbidden, mode)
	}

	s.bumpAccessCount(ctx, share)

	ret, err := s.decryptToScratch(ctx, file)
	if err != nil {
		return nil, err
	}

	if mode == ModeDownload {
		ret.FileName = file.OriginalName
	}

	s.recorder.Record(audit.Event{
		Action:  audit.ActionShareAccessed,
		ActorID: accessor,
		FileID:  file.ID,
		ShareID: share.ID,
		Detail:  mode,
	})
	s.publishShareAccessed(ctx, share, accessor, mode)

	return ret, nil
}

// PublicShareInfo 查询分享状态，分享不可用时仍返回状态字段.
// 私有分享对非接收者不暴露文件元数据.
func (s *VaultService) PublicShareInfo(ctx context.Context, token, accessor string) (*types.PublicShareInfo, error) {
	share, err := s.getShareByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	info := &types.PublicShareInfo{
		ID:          share.ID,
		CanView:     share.CanView,
		CanDownload: share.CanDownload,
		IsActive:    share.IsActive,
		IsPrivate:   share.IsPrivate,
		Expired:     share.Expired(time.Now().UTC()),
		ExpiresAt:   share.ExpiresAt,
		AccessCount: share.AccessCount,
	}

	if share.IsPrivate && (accessor == "" || !share.HasRecipient(accessor)) {
		return info, nil
	}

	file, err := s.loadSharedFile(ctx, share.FileID)
	if err != nil {
		switch {
		case errors.Is(err, ErrGone), errors.Is(err, ErrNotFound):
			info.FileDeleted = true
			return info, nil
		default:
			return nil, err
		}
	}

	info.FileName = file.OriginalName
	info.FileSize = file.Size
	info.ContentType = file.ContentType

	return info, nil
}

// loadSharedFile 加载分享指向的文件，已删除或已过期时返回 ErrGone.
func (s *VaultService) loadSharedFile(ctx context.Context, fileID string) (*model.File, error) {
	var file model.File
	if err := s.dbc.GetDB().WithContext(ctx).
		First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrGone, fileID)
		}

		return nil, fmt.Errorf("load shared file: %w", err)
	}

	if file.IsDeleted {
		return nil, fmt.Errorf("%w: file %s is deleted", ErrGone, fileID)
	}

	if file.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: file %s has expired", ErrGone, fileID)
	}

	return &file, nil
}

// bumpAccessCount 递增访问计数并使缓存失效. 计数失败不中断访问.
func (s *VaultService) bumpAccessCount(ctx context.Context, share *model.Share) {
	res := s.dbc.GetDB().WithContext(ctx).
		Model(&model.Share{}).
		Where("id = ?", share.ID).
		UpdateColumn("access_count", gorm.Expr("access_count + 1"))
	if res.Error != nil {
		nlog.Logger().Warn().Err(res.Error).Str("share", share.ID).Msg("bump access count failed")
		return
	}

	share.AccessCount++
	s.dropShareCache(ctx, share.ShareToken)
}

func (s *VaultService) publishShareAccessed(ctx context.Context, share *model.Share, accessor, mode string) {
	if s.mqc == nil {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicShareAccessed, queue.ShareAccessedPayload{
		ShareID:     share.ID,
		FileID:      share.FileID,
		ActorID:     accessor,
		Mode:        mode,
		AccessCount: share.AccessCount,
	}, queue.WithProducer("filevault"))
	if err == nil {
		err = s.mqc.Publish(ctx, queue.TopicShareAccessed, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Str("share", share.ID).Msg("publish share accessed failed")
	}
}
