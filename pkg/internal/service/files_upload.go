package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/internal/broker"
	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/quota"
	"github.com/yeisme/filevault/pkg/internal/types"
	"github.com/yeisme/filevault/pkg/internal/vault"
	nlog "github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/metrics"
	"github.com/yeisme/filevault/pkg/queue"
)

// UploadParams 上传输入. PlainPath 指向已落盘的明文暂存文件，
// 服务完成加密后负责删除它.
type UploadParams struct {
	PlainPath    string
	OriginalName string
	ContentType  string
	Size         int64
	TeamID       string
}

// Upload 加密入库一个文件.
// 流程：大小校验 → 团队配额预留 → 加密 → 密文哈希 → 存储落地 → 记录元数据.
// 元数据写入失败时回滚配额并清理密文，不留半成品.
func (s *VaultService) Upload(ctx context.Context, user string, p *UploadParams) (*types.UploadFileResponse, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}

	if p == nil || p.PlainPath == "" || p.OriginalName == "" {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	// 明文暂存文件由本方法负责清理
	defer os.Remove(p.PlainPath)

	if maxBytes := s.cfg.MaxUploadBytes(); maxBytes > 0 && p.Size > maxBytes {
		metrics.UploadCounter.WithLabelValues("too_large").Inc()

		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrTooLarge, p.Size, maxBytes)
	}

	isTeamFile := p.TeamID != ""
	if isTeamFile {
		ok, err := s.ledger.IsActiveMember(ctx, p.TeamID, user)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, fmt.Errorf("%w: not an active member of team %s", ErrForbidden, p.TeamID)
		}

		if err := s.ledger.Reserve(ctx, p.TeamID, p.Size); err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				metrics.UploadCounter.WithLabelValues("quota_exceeded").Inc()
				s.recorder.Record(audit.Event{
					Action:  audit.ActionQuotaRejected,
					ActorID: user,
					Detail:  fmt.Sprintf("team=%s requested=%d", p.TeamID, p.Size),
				})
				s.publishQuotaExceeded(ctx, p.TeamID, p.Size)
			}

			return nil, err
		}
	}

	resp, err := s.encryptAndStore(ctx, user, p, isTeamFile)
	if err != nil {
		// 已预留的配额随失败回滚
		if isTeamFile {
			if relErr := s.ledger.Release(ctx, p.TeamID, p.Size); relErr != nil {
				nlog.Logger().Error().Err(relErr).Str("team", p.TeamID).Msg("rollback quota failed")
			}
		}

		metrics.UploadCounter.WithLabelValues("error").Inc()

		return nil, err
	}

	metrics.UploadCounter.WithLabelValues("ok").Inc()

	return resp, nil
}

// encryptAndStore 执行加密、哈希、落地与元数据写入.
func (s *VaultService) encryptAndStore(ctx context.Context, user string, p *UploadParams, isTeamFile bool) (*types.UploadFileResponse, error) {
	now := time.Now().UTC()
	storedName := uuid.New().String() + filepath.Ext(p.OriginalName)

	encPath := filepath.Join(s.cfg.ScratchDir, storedName+".enc")
	if err := os.MkdirAll(s.cfg.ScratchDir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	iv, err := s.engine.EncryptFile(p.PlainPath, encPath)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	// 哈希对密文计算，校验时无需解密
	hash, err := vault.HashFile(encPath)
	if err != nil {
		_ = os.Remove(encPath)

		return nil, fmt.Errorf("hash ciphertext: %w", err)
	}

	location, remoteKey, err := s.broker.Put(ctx, storedName, encPath, "application/octet-stream")
	if err != nil {
		_ = os.Remove(encPath)

		return nil, fmt.Errorf("store ciphertext: %w", err)
	}

	file := &model.File{
		ID:              newFileID(now),
		OriginalName:    p.OriginalName,
		StoredName:      storedName,
		Size:            p.Size,
		ContentType:     p.ContentType,
		IV:              iv,
		ContentHash:     hash,
		OwnerID:         user,
		TeamID:          p.TeamID,
		IsTeamFile:      isTeamFile,
		StorageLocation: location,
		RemoteKey:       remoteKey,
	}

	if days := s.cfg.ExpiryDays; days > 0 {
		exp := now.Add(time.Duration(days) * 24 * time.Hour)
		file.ExpiresAt = &exp
	}

	if err := s.dbc.GetDB().WithContext(ctx).Create(file).Error; err != nil {
		s.broker.Delete(ctx, storedName, remoteKey)

		return nil, fmt.Errorf("create file record: %w", err)
	}

	s.recorder.Record(audit.Event{
		Action:  audit.ActionFileUploaded,
		ActorID: user,
		FileID:  file.ID,
		Detail:  fmt.Sprintf("name=%s size=%d location=%s", p.OriginalName, p.Size, location),
	})
	s.publishObjectStored(ctx, file)

	return &types.UploadFileResponse{File: fileToInfo(file)}, nil
}

// publishObjectStored 发布密文落地事件，失败只记日志.
func (s *VaultService) publishObjectStored(ctx context.Context, f *model.File) {
	if s.mqc == nil {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicObjectStored, queue.ObjectStoredPayload{
		Object: queue.ObjectRef{
			ObjectKey: broker.RemoteKeyFor(f.StoredName),
			Size:      f.Size,
			Hash:      f.ContentHash,
		},
		FileID:   f.ID,
		OwnerID:  f.OwnerID,
		TeamID:   f.TeamID,
		FileName: f.OriginalName,
	}, queue.WithProducer("filevault"))
	if err == nil {
		err = s.mqc.Publish(ctx, queue.TopicObjectStored, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Str("file", f.ID).Msg("publish object stored event failed")
	}
}

// publishQuotaExceeded 发布配额拒绝事件.
func (s *VaultService) publishQuotaExceeded(ctx context.Context, teamID string, requested int64) {
	if s.mqc == nil {
		return
	}

	used, limit, _ := s.ledger.Usage(ctx, teamID)

	msg, err := queue.NewWatermillMessage(queue.TopicQuotaExceeded, queue.QuotaExceededPayload{
		TeamID:    teamID,
		Requested: requested,
		Used:      used,
		Limit:     limit,
	}, queue.WithProducer("filevault"))
	if err == nil {
		err = s.mqc.Publish(ctx, queue.TopicQuotaExceeded, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Str("team", teamID).Msg("publish quota exceeded event failed")
	}
}

// fileToInfo 转换为对外结构.
func fileToInfo(f *model.File) types.FileInfo {
	return types.FileInfo{
		ID:              f.ID,
		OriginalName:    f.OriginalName,
		Size:            f.Size,
		ContentType:     f.ContentType,
		OwnerID:         f.OwnerID,
		TeamID:          f.TeamID,
		IsTeamFile:      f.IsTeamFile,
		StorageLocation: f.StorageLocation,
		ExpiresAt:       f.ExpiresAt,
		CreatedAt:       f.CreatedAt,
	}
}
