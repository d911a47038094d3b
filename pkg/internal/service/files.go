package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/types"
	"github.com/yeisme/filevault/pkg/internal/vault"
)

// ListFiles 返回用户可见的文件：自己上传的，加上所属活跃团队的团队文件.
func (s *VaultService) ListFiles(ctx context.Context, user string) (*types.ListFilesResponse, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}

	if s.dbc == nil || s.dbc.GetDB() == nil {
		return nil, errors.New("db not initialized")
	}

	var teamIDs []string
	if err := s.dbc.GetDB().WithContext(ctx).
		Model(&model.TeamMember{}).
		Where("user_id = ? AND status = ?", user, model.MemberStatusActive).
		Pluck("team_id", &teamIDs).Error; err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}

	q := s.dbc.GetDB().WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at DESC")

	if len(teamIDs) > 0 {
		q = q.Where("owner_id = ? OR (is_team_file = ? AND team_id IN ?)", user, true, teamIDs)
	} else {
		q = q.Where("owner_id = ?", user)
	}

	var files []model.File
	if err := q.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	infos := make([]types.FileInfo, 0, len(files))
	for i := range files {
		infos = append(infos, fileToInfo(&files[i]))
	}

	return &types.ListFilesResponse{Files: infos, Total: int64(len(infos))}, nil
}

// GetFile 返回单个文件的元数据，请求者需要查看权限.
func (s *VaultService) GetFile(ctx context.Context, user, fileID string) (*types.FileInfo, error) {
	file, err := s.loadActiveFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	mask, err := s.authorizer.FilePermissions(ctx, user, file)
	if err != nil {
		return nil, err
	}

	if !mask.CanView {
		return nil, fmt.Errorf("%w: no view permission on %s", ErrForbidden, fileID)
	}

	info := fileToInfo(file)

	return &info, nil
}

// VerifyFile 按需校验密文哈希，结果不缓存.
func (s *VaultService) VerifyFile(ctx context.Context, user, fileID string) (*types.VerifyFileResponse, error) {
	file, err := s.loadActiveFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	mask, err := s.authorizer.FilePermissions(ctx, user, file)
	if err != nil {
		return nil, err
	}

	if !mask.CanView {
		return nil, fmt.Errorf("%w: no view permission on %s", ErrForbidden, fileID)
	}

	encPath, release, err := s.broker.EnsureLocal(ctx, file.StoredName, file.StorageLocation, file.RemoteKey)
	if err != nil {
		return nil, fmt.Errorf("ensure ciphertext: %w", err)
	}
	defer release()

	verified, actual, err := vault.VerifyFile(encPath, file.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("verify ciphertext: %w", err)
	}

	s.recorder.Record(audit.Event{
		Action:  audit.ActionFileVerified,
		ActorID: user,
		FileID:  file.ID,
		Detail:  fmt.Sprintf("verified=%t", verified),
	})

	return &types.VerifyFileResponse{
		ID:           file.ID,
		Verified:     verified,
		ExpectedHash: file.ContentHash,
		ActualHash:   actual,
	}, nil
}
