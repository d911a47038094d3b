package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/types"
)

// shareFor 建立一个文件加分享的测试夹具，返回分享令牌与分享 ID.
func shareFor(t *testing.T, svc *VaultService, req *types.CreateShareRequest) (token, shareID, fileID string) {
	t.Helper()

	file := uploadSample(t, svc, "alice", "a.txt", "shared content", "")
	req.FileID = file.ID

	created, err := svc.CreateShare(context.Background(), "alice", req)
	require.NoError(t, err)

	return created.Share.ShareToken, created.Share.ID, file.ID
}

func TestAccessShareAnonymousView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, shareID, _ := shareFor(t, svc, &types.CreateShareRequest{})

	ret, err := svc.AccessShare(ctx, token, "", ModeView)
	require.NoError(t, err)
	assert.Equal(t, "shared content", readRetrieval(t, ret))

	// 成功访问递增计数
	var share model.Share
	require.NoError(t, svc.dbc.GetDB().First(&share, "id = ?", shareID).Error)
	assert.Equal(t, int64(1), share.AccessCount)
}

func TestAccessShareDownloadUsesOriginalName(t *testing.T) {
	svc := newTestService(t)

	token, _, _ := shareFor(t, svc, &types.CreateShareRequest{})

	ret, err := svc.AccessShare(context.Background(), token, "", ModeDownload)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", ret.FileName)
	ret.Cleanup()
}

func TestAccessShareUnknownToken(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AccessShare(context.Background(), "no-such-token", "", ModeView)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAccessShareModeNotPermitted(t *testing.T) {
	svc := newTestService(t)

	token, _, _ := shareFor(t, svc, &types.CreateShareRequest{
		CanDownload: boolPtr(false),
	})

	_, err := svc.AccessShare(context.Background(), token, "", ModeDownload)
	require.ErrorIs(t, err, ErrForbidden)

	// view 仍然可用
	ret, err := svc.AccessShare(context.Background(), token, "", ModeView)
	require.NoError(t, err)
	ret.Cleanup()
}

func TestAccessShareExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, shareID, _ := shareFor(t, svc, &types.CreateShareRequest{ExpirationDays: 1})

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.Share{}).
		Where("id = ?", shareID).
		Update("expires_at", past).Error)

	_, err := svc.AccessShare(ctx, token, "", ModeView)
	require.ErrorIs(t, err, ErrExpired)
}

func TestAccessShareInactiveBeforeExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, shareID, _ := shareFor(t, svc, &types.CreateShareRequest{ExpirationDays: 1})

	// 同时吊销和过期，吊销先被判定
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.Share{}).
		Where("id = ?", shareID).
		Updates(map[string]any{"is_active": false, "expires_at": past}).Error)

	_, err := svc.AccessShare(ctx, token, "", ModeView)
	require.ErrorIs(t, err, ErrShareInactive)
}

func TestAccessShareFileGoneBeforeShareExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, shareID, fileID := shareFor(t, svc, &types.CreateShareRequest{ExpirationDays: 1})

	// 文件已删且分享已过期时，文件状态先被判定
	_, err := svc.DeleteFile(ctx, "alice", fileID)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.Share{}).
		Where("id = ?", shareID).
		Update("expires_at", past).Error)

	_, err = svc.AccessShare(ctx, token, "", ModeView)
	require.ErrorIs(t, err, ErrGone)
}

func TestAccessSharePrivateRecipients(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, _, _ := shareFor(t, svc, &types.CreateShareRequest{
		IsPrivate:    true,
		RecipientIDs: []string{"bob"},
	})

	// 匿名访问被拒
	_, err := svc.AccessShare(ctx, token, "", ModeView)
	require.ErrorIs(t, err, ErrForbidden)

	// 名单之外的用户被拒
	_, err = svc.AccessShare(ctx, token, "mallory", ModeView)
	require.ErrorIs(t, err, ErrForbidden)

	// 接收者可以访问
	ret, err := svc.AccessShare(ctx, token, "bob", ModeView)
	require.NoError(t, err)
	assert.Equal(t, "shared content", readRetrieval(t, ret))
}

func TestAccessShareFileDeleted(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, _, fileID := shareFor(t, svc, &types.CreateShareRequest{})

	_, err := svc.DeleteFile(ctx, "alice", fileID)
	require.NoError(t, err)

	_, err = svc.AccessShare(ctx, token, "", ModeView)
	require.ErrorIs(t, err, ErrGone)
}

func TestAccessShareFileExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, _, fileID := shareFor(t, svc, &types.CreateShareRequest{})

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.File{}).
		Where("id = ?", fileID).
		Update("expires_at", past).Error)

	_, err := svc.AccessShare(ctx, token, "", ModeView)
	require.ErrorIs(t, err, ErrGone)
}

func TestPublicShareInfoActiveShare(t *testing.T) {
	svc := newTestService(t)

	token, _, _ := shareFor(t, svc, &types.CreateShareRequest{})

	info, err := svc.PublicShareInfo(context.Background(), token, "")
	require.NoError(t, err)
	assert.True(t, info.IsActive)
	assert.False(t, info.Expired)
	assert.False(t, info.FileDeleted)
	assert.Equal(t, "a.txt", info.FileName)
	assert.Equal(t, int64(len("shared content")), info.FileSize)
}

func TestPublicShareInfoRevokedStillReturnsState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, shareID, _ := shareFor(t, svc, &types.CreateShareRequest{})

	_, err := svc.RevokeShare(ctx, "alice", shareID)
	require.NoError(t, err)

	info, err := svc.PublicShareInfo(ctx, token, "")
	require.NoError(t, err)
	assert.False(t, info.IsActive)
	assert.Equal(t, "a.txt", info.FileName)
}

func TestPublicShareInfoDeletedFile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, _, fileID := shareFor(t, svc, &types.CreateShareRequest{})

	_, err := svc.DeleteFile(ctx, "alice", fileID)
	require.NoError(t, err)

	info, err := svc.PublicShareInfo(ctx, token, "")
	require.NoError(t, err)
	assert.True(t, info.FileDeleted)
	assert.Empty(t, info.FileName)
}

func TestPublicShareInfoPrivateHidesMetadata(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, _, _ := shareFor(t, svc, &types.CreateShareRequest{
		IsPrivate:    true,
		RecipientIDs: []string{"bob"},
	})

	// 非接收者只看到状态位，文件元数据不暴露
	info, err := svc.PublicShareInfo(ctx, token, "mallory")
	require.NoError(t, err)
	assert.True(t, info.IsPrivate)
	assert.Empty(t, info.FileName)

	info, err = svc.PublicShareInfo(ctx, token, "bob")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.FileName)
}
