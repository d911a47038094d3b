package service

import (
	"context"
	"encoding/json"
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

const (
	shareKeyPrefix = "shares:v1:"
)

// 缓存 TTL 策略常量：集中管理，避免魔数.
// 缓存只存分享记录本身，访问判定每次实时计算.
const (
	shareCacheDefaultTTL = 10 * time.Minute // 未设置过期时间时的默认缓存时长
	shareCacheMaxTTL     = 30 * time.Minute // 单条分享缓存的最长缓存时间上限
)

// CreateShare 为文件创建分享链接. 令牌为 32 随机字节的十六进制串，不可猜测.
func (s *VaultService) CreateShare(ctx context.Context, user string, req *types.CreateShareRequest) (*types.CreateShareResponse, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}

	if req == nil || req.FileID == "" {
		return nil, fmt.Errorf("%w: file_id is required", ErrValidation)
	}

	if req.IsPrivate && len(req.RecipientIDs) == 0 {
		return nil, fmt.Errorf("%w: private share needs recipients", ErrValidation)
	}

	file, err := s.loadActiveFile(ctx, req.FileID)
	if err != nil {
		return nil, err
	}

	mask, err := s.authorizer.FilePermissions(ctx, user, file)
	if err != nil {
		return nil, err
	}

	if !mask.CanView {
		return nil, fmt.Errorf("%w: no permission to share %s", ErrForbidden, req.FileID)
	}

	token, err := newShareToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	share := &model.Share{
		ID:          newShareID(now),
		ShareToken:  token,
		FileID:      file.ID,
		CreatedByID: user,
		CanView:     boolOrDefault(req.CanView, true),
		CanDownload: boolOrDefault(req.CanDownload, true),
		IsActive:    true,
		IsPrivate:   req.IsPrivate,
	}

	if err := share.SetRecipients(req.RecipientIDs); err != nil {
		return nil, err
	}

	// expiration_days <= 0 表示不过期
	if req.ExpirationDays > 0 {
		exp := now.Add(time.Duration(req.ExpirationDays) * 24 * time.Hour)
		share.ExpiresAt = &exp
	}

	if err := s.dbc.GetDB().WithContext(ctx).Create(share).Error; err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}

	// 轻缓存（可选）：写入 share 缓存
	_ = s.cacheShare(ctx, share)

	s.recorder.Record(audit.Event{
		Action:  audit.ActionShareCreated,
		ActorID: user,
		FileID:  file.ID,
		ShareID: share.ID,
	})
	s.publishShareEvent(ctx, queue.TopicShareCreated, share, user)

	return &types.CreateShareResponse{Share: s.shareToInfo(share, true)}, nil
}

// ListShares 获取用户创建的全部分享.
func (s *VaultService) ListShares(ctx context.Context, user string) (*types.ListSharesResponse, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	var shares []model.Share
	if err := s.dbc.GetDB().WithContext(ctx).
		Where("created_by_id = ?", user).
		Order("created_at DESC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}

	out := make([]types.ShareInfo, 0, len(shares))
	for i := range shares {
		out = append(out, s.shareToInfo(&shares[i], true))
	}

	return &types.ListSharesResponse{Shares: out}, nil
}

// ListSharesByFile 获取指定文件的分享列表，请求者需要文件查看权限.
func (s *VaultService) ListSharesByFile(ctx context.Context, user, fileID string) (*types.ListSharesResponse, error) {
	file, err := s.loadActiveFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	mask, err := s.authorizer.FilePermissions(ctx, user, file)
	if err != nil {
		return nil, err
	}

	if !mask.CanView {
		return nil, fmt.Errorf("%w: no permission on %s", ErrForbidden, fileID)
	}

	var shares []model.Share
	if err := s.dbc.GetDB().WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("created_at DESC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("list shares by file: %w", err)
	}

	out := make([]types.ShareInfo, 0, len(shares))
	for i := range shares {
		// 令牌只对创建者展示
		out = append(out, s.shareToInfo(&shares[i], shares[i].CreatedByID == user))
	}

	return &types.ListSharesResponse{Shares: out}, nil
}

// UpdateShare 更新分享参数（仅创建者），空指针字段保持不变.
func (s *VaultService) UpdateShare(ctx context.Context, user, shareID string, req *types.UpdateShareRequest) (*types.ShareInfo, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request body is required", ErrValidation)
	}

	share, err := s.loadOwnShare(ctx, user, shareID)
	if err != nil {
		return nil, err
	}

	if req.CanView != nil {
		share.CanView = *req.CanView
	}

	if req.CanDownload != nil {
		share.CanDownload = *req.CanDownload
	}

	if req.IsPrivate != nil {
		share.IsPrivate = *req.IsPrivate
	}

	if req.RecipientIDs != nil {
		if err := share.SetRecipients(req.RecipientIDs); err != nil {
			return nil, err
		}
	}

	if req.ExpirationDays != nil {
		if *req.ExpirationDays > 0 {
			exp := time.Now().UTC().Add(time.Duration(*req.ExpirationDays) * 24 * time.Hour)
			share.ExpiresAt = &exp
		} else {
			share.ExpiresAt = nil
		}
	}

	if share.IsPrivate && share.RecipientIDsJSON == "" {
		return nil, fmt.Errorf("%w: private share needs recipients", ErrValidation)
	}

	if err := s.dbc.GetDB().WithContext(ctx).Save(share).Error; err != nil {
		return nil, fmt.Errorf("update share: %w", err)
	}

	// 任何变更后旧缓存立即失效
	s.dropShareCache(ctx, share.ShareToken)

	s.recorder.Record(audit.Event{
		Action:  audit.ActionShareUpdated,
		ActorID: user,
		FileID:  share.FileID,
		ShareID: share.ID,
	})

	info := s.shareToInfo(share, true)

	return &info, nil
}

// RevokeShare 吊销分享（仅创建者）. 吊销立即生效，后续访问一律拒绝.
func (s *VaultService) RevokeShare(ctx context.Context, user, shareID string) (*types.RevokeShareResponse, error) {
	share, err := s.loadOwnShare(ctx, user, shareID)
	if err != nil {
		return nil, err
	}

	if share.IsActive {
		if err := s.dbc.GetDB().WithContext(ctx).
			Model(share).
			Update("is_active", false).Error; err != nil {
			return nil, fmt.Errorf("revoke share: %w", err)
		}
	}

	s.dropShareCache(ctx, share.ShareToken)

	s.recorder.Record(audit.Event{
		Action:  audit.ActionShareRevoked,
		ActorID: user,
		FileID:  share.FileID,
		ShareID: share.ID,
	})
	s.publishShareEvent(ctx, queue.TopicShareRevoked, share, user)

	return &types.RevokeShareResponse{ID: share.ID, Revoked: true}, nil
}

// loadOwnShare 加载分享并校验创建者身份.
func (s *VaultService) loadOwnShare(ctx context.Context, user, shareID string) (*model.Share, error) {
	if user == "" || shareID == "" {
		return nil, fmt.Errorf("%w: user/share id is required", ErrValidation)
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	var share model.Share
	if err := s.dbc.GetDB().WithContext(ctx).
		First(&share, "id = ?", shareID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: share %s", ErrNotFound, shareID)
		}

		return nil, fmt.Errorf("load share: %w", err)
	}

	if share.CreatedByID != user {
		return nil, fmt.Errorf("%w: not share creator", ErrForbidden)
	}

	return &share, nil
}

// ---- 内部工具 ----

// shareToInfo 转换为对外结构. includeToken 控制是否暴露令牌与完整链接.
func (s *VaultService) shareToInfo(share *model.Share, includeToken bool) types.ShareInfo {
	recipients, _ := share.Recipients()

	info := types.ShareInfo{
		ID:           share.ID,
		FileID:       share.FileID,
		CreatedByID:  share.CreatedByID,
		CanView:      share.CanView,
		CanDownload:  share.CanDownload,
		IsActive:     share.IsActive,
		IsPrivate:    share.IsPrivate,
		RecipientIDs: recipients,
		ExpiresAt:    share.ExpiresAt,
		AccessCount:  share.AccessCount,
		CreatedAt:    share.CreatedAt,
	}

	if includeToken {
		info.ShareToken = share.ShareToken
		if base := s.cfg.ShareBaseURL; base != "" {
			info.ShareURL = base + "/" + share.ShareToken
		}
	}

	return info
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}

	return *v
}

func makeShareKey(token string) string { return shareKeyPrefix + "token:" + token }

// shareCacheTTL 按分享过期时间裁剪缓存时长.
func shareCacheTTL(share *model.Share) time.Duration {
	ttl := shareCacheDefaultTTL
	if share.ExpiresAt != nil {
		ttl = min(max(time.Until(*share.ExpiresAt), 0), shareCacheMaxTTL)
	}

	return ttl
}

// cacheShare 把分享记录写入 KV 缓存，失败不影响主流程.
func (s *VaultService) cacheShare(ctx context.Context, share *model.Share) error {
	if s.kvc == nil {
		return nil
	}

	b, err := json.Marshal(share)
	if err != nil {
		return fmt.Errorf("marshal share: %w", err)
	}

	return s.kvc.Set(ctx, makeShareKey(share.ShareToken), b, shareCacheTTL(share))
}

// dropShareCache 删除分享缓存，变更后调用.
func (s *VaultService) dropShareCache(ctx context.Context, token string) {
	if s.kvc == nil {
		return
	}

	if err := s.kvc.Delete(ctx, makeShareKey(token)); err != nil {
		nlog.Logger().Warn().Err(err).Msg("drop share cache failed")
	}
}

// getShareByToken 先查缓存再回源 DB. 缓存只省查找，不缓存任何判定结果.
func (s *VaultService) getShareByToken(ctx context.Context, token string) (*model.Share, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: share token is required", ErrValidation)
	}

	if s.kvc != nil {
		if b, err := s.kvc.Get(ctx, makeShareKey(token)); err == nil {
			var share model.Share
			if err := json.Unmarshal(b, &share); err == nil {
				return &share, nil
			}
		}
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	var share model.Share
	if err := s.dbc.GetDB().WithContext(ctx).
		First(&share, "share_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: share token", ErrNotFound)
		}

		return nil, fmt.Errorf("load share: %w", err)
	}

	_ = s.cacheShare(ctx, &share)

	return &share, nil
}

// publishShareEvent 发布分享生命周期事件，失败只记日志.
func (s *VaultService) publishShareEvent(ctx context.Context, topic string, share *model.Share, actor string) {
	if s.mqc == nil {
		return
	}

	msg, err := queue.NewWatermillMessage(topic, queue.SharePayload{
		ShareID:   share.ID,
		FileID:    share.FileID,
		ActorID:   actor,
		IsPrivate: share.IsPrivate,
	}, queue.WithProducer("filevault"))
	if err == nil {
		err = s.mqc.Publish(ctx, topic, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Str("share", share.ID).Msg("publish share event failed")
	}
}
