package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/filevault/pkg/internal/types"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func TestCreateShareDefaults(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	resp, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: file.ID})
	require.NoError(t, err)

	share := resp.Share
	assert.Len(t, share.ShareToken, 64)
	assert.Equal(t, "http://localhost:8080/share/"+share.ShareToken, share.ShareURL)
	assert.True(t, share.CanView)
	assert.True(t, share.CanDownload)
	assert.True(t, share.IsActive)
	assert.False(t, share.IsPrivate)
	assert.Nil(t, share.ExpiresAt)
	assert.Equal(t, int64(0), share.AccessCount)
}

func TestCreateShareTokensUnique(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		resp, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: file.ID})
		require.NoError(t, err)
		assert.False(t, seen[resp.Share.ShareToken])
		seen[resp.Share.ShareToken] = true
	}
}

func TestCreateShareExpiration(t *testing.T) {
	svc := newTestService(t)

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	resp, err := svc.CreateShare(context.Background(), "alice", &types.CreateShareRequest{
		FileID:         file.ID,
		ExpirationDays: 7,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Share.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), *resp.Share.ExpiresAt, time.Minute)
}

func TestCreateShareForbiddenForStranger(t *testing.T) {
	svc := newTestService(t)

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	_, err := svc.CreateShare(context.Background(), "mallory", &types.CreateShareRequest{FileID: file.ID})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateSharePrivateNeedsRecipients(t *testing.T) {
	svc := newTestService(t)

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	_, err := svc.CreateShare(context.Background(), "alice", &types.CreateShareRequest{
		FileID:    file.ID,
		IsPrivate: true,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateShareMissingFile(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateShare(context.Background(), "alice", &types.CreateShareRequest{FileID: "f_missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListSharesByCreator(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a := uploadSample(t, svc, "alice", "a.txt", "one", "")
	b := uploadSample(t, svc, "alice", "b.txt", "two", "")

	_, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: a.ID})
	require.NoError(t, err)
	_, err = svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: b.ID})
	require.NoError(t, err)

	resp, err := svc.ListShares(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, resp.Shares, 2)

	resp, err = svc.ListShares(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, resp.Shares)
}

func TestListSharesByFileHidesForeignTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedTeam(t, svc, "t1", 1000, "alice", "bob")
	file := uploadSample(t, svc, "alice", "a.txt", "team data", "t1")

	created, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: file.ID})
	require.NoError(t, err)

	// 创建者看得到令牌
	resp, err := svc.ListSharesByFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	require.Len(t, resp.Shares, 1)
	assert.Equal(t, created.Share.ShareToken, resp.Shares[0].ShareToken)

	// 其他团队成员看得到分享但看不到令牌
	resp, err = svc.ListSharesByFile(ctx, "bob", file.ID)
	require.NoError(t, err)
	require.Len(t, resp.Shares, 1)
	assert.Empty(t, resp.Shares[0].ShareToken)

	// 无文件权限者连列表都不可见
	_, err = svc.ListSharesByFile(ctx, "mallory", file.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateSharePartialFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")
	created, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{
		FileID:         file.ID,
		ExpirationDays: 7,
	})
	require.NoError(t, err)

	info, err := svc.UpdateShare(ctx, "alice", created.Share.ID, &types.UpdateShareRequest{
		CanDownload: boolPtr(false),
	})
	require.NoError(t, err)
	assert.True(t, info.CanView)       // 未提供的字段不变
	assert.False(t, info.CanDownload)  // 提供的字段生效
	require.NotNil(t, info.ExpiresAt)  // 过期时间不变

	// expiration_days=0 清除过期时间
	info, err = svc.UpdateShare(ctx, "alice", created.Share.ID, &types.UpdateShareRequest{
		ExpirationDays: intPtr(0),
	})
	require.NoError(t, err)
	assert.Nil(t, info.ExpiresAt)
}

func TestUpdateShareOnlyCreator(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")
	created, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: file.ID})
	require.NoError(t, err)

	_, err = svc.UpdateShare(ctx, "bob", created.Share.ID, &types.UpdateShareRequest{
		CanView: boolPtr(false),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRevokeShare(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")
	created, err := svc.CreateShare(ctx, "alice", &types.CreateShareRequest{FileID: file.ID})
	require.NoError(t, err)

	resp, err := svc.RevokeShare(ctx, "alice", created.Share.ID)
	require.NoError(t, err)
	assert.True(t, resp.Revoked)

	// 吊销立即生效
	_, err = svc.AccessShare(ctx, created.Share.ShareToken, "", ModeView)
	require.ErrorIs(t, err, ErrShareInactive)

	// 重复吊销幂等
	resp, err = svc.RevokeShare(ctx, "alice", created.Share.ID)
	require.NoError(t, err)
	assert.True(t, resp.Revoked)
}

func TestRevokeShareNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.RevokeShare(context.Background(), "alice", "sh_missing")
	require.ErrorIs(t, err, ErrNotFound)
}
