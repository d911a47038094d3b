package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/types"
	nlog "github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/queue"
)

// DeleteFile 软删除文件并归还配额. 操作幂等：重复删除直接确认，
// 配额只在第一次删除成功时释放一次.
func (s *VaultService) DeleteFile(ctx context.Context, user, fileID string) (*types.DeleteFileResponse, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", ErrValidation)
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	var file model.File
	if err := s.dbc.GetDB().WithContext(ctx).
		First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}

		return nil, fmt.Errorf("load file: %w", err)
	}

	mask, err := s.authorizer.FilePermissions(ctx, user, &file)
	if err != nil {
		return nil, err
	}

	if !mask.CanDelete {
		return nil, fmt.Errorf("%w: no delete permission on %s", ErrForbidden, fileID)
	}

	if file.IsDeleted {
		// 重试的删除：确认即可，不再重复释放配额
		return &types.DeleteFileResponse{ID: fileID, Deleted: true}, nil
	}

	if err := s.softDelete(ctx, &file, user, false); err != nil {
		return nil, err
	}

	return &types.DeleteFileResponse{ID: fileID, Deleted: true}, nil
}

// softDelete 条件更新执行软删除. RowsAffected 为 1 才是本次删除的赢家，
// 只有赢家释放配额和清理密文，并发删除不会双重释放.
func (s *VaultService) softDelete(ctx context.Context, file *model.File, actor string, expired bool) error {
	res := s.dbc.GetDB().WithContext(ctx).
		Model(&model.File{}).
		Where("id = ? AND is_deleted = ?", file.ID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("soft delete file: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// 别的请求先删了
		return nil
	}

	if file.IsTeamFile && file.TeamID != "" {
		if err := s.ledger.Release(ctx, file.TeamID, file.Size); err != nil {
			nlog.Logger().Error().Err(err).
				Str("file", file.ID).
				Str("team", file.TeamID).
				Msg("release quota after delete failed")
		}
	}

	s.broker.Delete(ctx, file.StoredName, file.RemoteKey)

	action := audit.ActionFileDeleted
	if expired {
		action = audit.ActionFileExpired
	}

	s.recorder.Record(audit.Event{
		Action:  action,
		ActorID: actor,
		FileID:  file.ID,
	})
	s.publishObjectDeleted(ctx, file, actor, expired)

	return nil
}

// publishObjectDeleted 发布删除事件，失败只记日志.
func (s *VaultService) publishObjectDeleted(ctx context.Context, f *model.File, actor string, expired bool) {
	if s.mqc == nil {
		return
	}

	topic := queue.TopicObjectDeleted
	if expired {
		topic = queue.TopicObjectExpired
	}

	msg, err := queue.NewWatermillMessage(topic, queue.ObjectDeletedPayload{
		Object:  queue.ObjectRef{ObjectKey: f.StoredName, Size: f.Size},
		FileID:  f.ID,
		ActorID: actor,
		Expired: expired,
	}, queue.WithProducer("filevault"))
	if err == nil {
		err = s.mqc.Publish(ctx, topic, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Str("file", f.ID).Msg("publish object deleted event failed")
	}
}

// SweepExpiredFiles 软删除所有超过保留期的文件，供定时任务调用.
// 返回本次清理的数量.
func (s *VaultService) SweepExpiredFiles(ctx context.Context) (int, error) {
	if s.dbc == nil || s.dbc.GetDB() == nil {
		return 0, errors.New("db not initialized")
	}

	var files []model.File
	if err := s.dbc.GetDB().WithContext(ctx).
		Where("is_deleted = ? AND expires_at IS NOT NULL AND expires_at <= CURRENT_TIMESTAMP", false).
		Find(&files).Error; err != nil {
		return 0, fmt.Errorf("list expired files: %w", err)
	}

	swept := 0

	for i := range files {
		if err := s.softDelete(ctx, &files[i], "system", true); err != nil {
			nlog.Logger().Error().Err(err).Str("file", files[i].ID).Msg("sweep expired file failed")

			continue
		}

		swept++
	}

	if swept > 0 {
		nlog.Logger().Info().Int("count", swept).Msg("expired files swept")
	}

	return swept, nil
}
