package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/vault"
	nlog "github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/metrics"
	"github.com/yeisme/filevault/pkg/queue"
)

// 访问模式.
const (
	ModeView     = "view"
	ModeDownload = "download"
)

// Retrieval 解密完成的检索结果. Path 指向明文临时文件，
// 响应写完后调用 Cleanup 删除它.
type Retrieval struct {
	Path        string
	FileName    string
	ContentType string
	// Verified 密文哈希校验结果. 失败不阻止访问，只作告警
	Verified bool
	Cleanup  func()
}

// Retrieve 按模式取回文件明文.
// view 需要查看权限，download 需要下载权限；权限不足返回 ErrForbidden.
func (s *VaultService) Retrieve(ctx context.Context, user, fileID, mode string) (*Retrieval, error) {
	if mode != ModeView && mode != ModeDownload {
		return nil, fmt.Errorf("%w: invalid mode %q", ErrValidation, mode)
	}

	file, err := s.loadActiveFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	mask, err := s.authorizer.FilePermissions(ctx, user, file)
	if err != nil {
		return nil, err
	}

	allowed := (mode == ModeView && mask.CanView) || (mode == ModeDownload && mask.CanDownload)
	if !allowed {
		return nil, fmt.Errorf("%w: no %s permission on %s", ErrForbidden, mode, fileID)
	}

	ret, err := s.decryptToScratch(ctx, file)
	if err != nil {
		return nil, err
	}

	action := audit.ActionFileViewed
	if mode == ModeDownload {
		action = audit.ActionFileDownloaded
	}

	s.recorder.Record(audit.Event{
		Action:  action,
		ActorID: user,
		FileID:  file.ID,
		Detail:  fmt.Sprintf("verified=%t", ret.Verified),
	})
	s.publishObjectAccessed(ctx, file, user, mode, ret.Verified)

	return ret, nil
}

// loadActiveFile 加载未删除且未过期的文件.
func (s *VaultService) loadActiveFile(ctx context.Context, fileID string) (*model.File, error) {
	if fileID == "" {
		return nil, fmt.Errorf("%w: file id is required", ErrValidation)
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	var file model.File
	if err := s.dbc.GetDB().WithContext(ctx).
		Where("id = ? AND is_deleted = ?", fileID, false).
		First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}

		return nil, fmt.Errorf("load file: %w", err)
	}

	if file.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: file %s expired", ErrGone, fileID)
	}

	return &file, nil
}

// decryptToScratch 保证密文在本地后校验哈希并解密到临时文件.
// 哈希不匹配只降级为告警，仍然尝试解密；GCM 认证失败才拒绝服务.
func (s *VaultService) decryptToScratch(ctx context.Context, file *model.File) (*Retrieval, error) {
	encPath, release, err := s.broker.EnsureLocal(ctx, file.StoredName, file.StorageLocation, file.RemoteKey)
	if err != nil {
		return nil, fmt.Errorf("ensure ciphertext: %w", err)
	}
	defer release()

	verified, actual, err := vault.VerifyFile(encPath, file.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("verify ciphertext: %w", err)
	}

	if !verified {
		metrics.IntegrityFailures.Inc()
		nlog.Logger().Warn().
			Str("file", file.ID).
			Str("expected", file.ContentHash).
			Str("actual", actual).
			Msg("ciphertext hash mismatch")
	}

	if err := os.MkdirAll(s.cfg.ScratchDir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	// 每个请求独立的明文临时文件，用完即删
	plainPath := filepath.Join(s.cfg.ScratchDir,
		fmt.Sprintf("dec-%d-%s%s", time.Now().UnixNano(), randHex(8), filepath.Ext(file.StoredName)))

	if err := s.engine.DecryptFile(encPath, plainPath, file.IV); err != nil {
		// 写入中途失败可能留下半成品明文
		_ = os.Remove(plainPath)

		return nil, fmt.Errorf("decrypt file %s: %w", file.ID, err)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Retrieval{
		Path:        plainPath,
		FileName:    file.OriginalName,
		ContentType: contentType,
		Verified:    verified,
		Cleanup: func() {
			if err := os.Remove(plainPath); err != nil && !os.IsNotExist(err) {
				nlog.Logger().Warn().Err(err).Str("path", plainPath).Msg("remove plaintext temp failed")
			}
		},
	}, nil
}

// publishObjectAccessed 发布访问事件，失败只记日志.
func (s *VaultService) publishObjectAccessed(ctx context.Context, f *model.File, actor, mode string, verified bool) {
	if s.mqc == nil {
		return
	}

	msg, err := queue.NewWatermillMessage(queue.TopicObjectAccessed, queue.ObjectAccessedPayload{
		Object:   queue.ObjectRef{ObjectKey: f.StoredName, Size: f.Size},
		FileID:   f.ID,
		ActorID:  actor,
		Mode:     mode,
		Verified: verified,
	}, queue.WithProducer("filevault"))
	if err == nil {
		err = s.mqc.Publish(ctx, queue.TopicObjectAccessed, msg)
	}

	if err != nil {
		nlog.Logger().Warn().Err(err).Str("file", f.ID).Msg("publish object accessed event failed")
	}
}
