package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/quota"
)

func TestUploadAndRetrieveRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plain := stagePlain(t, "top secret payload")
	resp, err := svc.Upload(ctx, "alice", &UploadParams{
		PlainPath:    plain,
		OriginalName: "notes.txt",
		ContentType:  "text/plain",
		Size:         18,
	})
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", resp.File.OriginalName)
	assert.Equal(t, "alice", resp.File.OwnerID)
	assert.Equal(t, model.StorageLocal, resp.File.StorageLocation)

	// 明文暂存文件在上传完成后被删除
	_, statErr := os.Stat(plain)
	assert.True(t, os.IsNotExist(statErr))

	ret, err := svc.Retrieve(ctx, "alice", resp.File.ID, ModeView)
	require.NoError(t, err)
	assert.True(t, ret.Verified)
	assert.Equal(t, "text/plain", ret.ContentType)
	assert.Equal(t, "top secret payload", readRetrieval(t, ret))

	// Cleanup 后明文临时文件不存在
	_, statErr = os.Stat(ret.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Upload(context.Background(), "alice", &UploadParams{
		PlainPath:    stagePlain(t, "x"),
		OriginalName: "big.bin",
		Size:         svc.cfg.MaxUploadBytes() + 1,
	})
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestUploadTeamQuotaAccounting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedTeam(t, svc, "t1", 16, "alice")
	_ = uploadSample(t, svc, "alice", "a.txt", "0123456789", "t1")

	used, limit, err := svc.ledger.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)
	assert.Equal(t, int64(16), limit)

	// 超出剩余额度的上传被拒绝且用量不变
	_, err = svc.Upload(ctx, "alice", &UploadParams{
		PlainPath:    stagePlain(t, "0123456789"),
		OriginalName: "b.txt",
		Size:         10,
		TeamID:       "t1",
	})
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)

	used, _, err = svc.ledger.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)
}

func TestUploadTeamRequiresActiveMembership(t *testing.T) {
	svc := newTestService(t)

	seedTeam(t, svc, "t1", 100, "alice")

	_, err := svc.Upload(context.Background(), "mallory", &UploadParams{
		PlainPath:    stagePlain(t, "data"),
		OriginalName: "x.txt",
		Size:         4,
		TeamID:       "t1",
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRetrieveForbiddenForStranger(t *testing.T) {
	svc := newTestService(t)

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	_, err := svc.Retrieve(context.Background(), "mallory", file.ID, ModeDownload)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRetrieveTeamFileByActiveMember(t *testing.T) {
	svc := newTestService(t)

	seedTeam(t, svc, "t1", 100, "alice", "bob")
	file := uploadSample(t, svc, "alice", "a.txt", "team data", "t1")

	ret, err := svc.Retrieve(context.Background(), "bob", file.ID, ModeView)
	require.NoError(t, err)
	assert.Equal(t, "team data", readRetrieval(t, ret))
}

func TestRetrieveHashMismatchServedUnverified(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	// 篡改记录中的哈希：密文本身完好，GCM 校验仍通过
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.File{}).
		Where("id = ?", file.ID).
		Update("content_hash", "deadbeef").Error)

	ret, err := svc.Retrieve(ctx, "alice", file.ID, ModeView)
	require.NoError(t, err)
	assert.False(t, ret.Verified)
	assert.Equal(t, "hello", readRetrieval(t, ret))
}

func TestRetrieveTamperedCiphertextLeavesNoPlaintext(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	// 破坏磁盘上的密文，GCM 认证失败
	encPath := filepath.Join(svc.cfg.CacheDir, file.StoredName)
	require.NoError(t, os.WriteFile(encPath, []byte("garbage"), 0o600))

	_, err := svc.Retrieve(ctx, "alice", file.ID, ModeView)
	require.Error(t, err)

	// 解密失败后暂存目录不残留明文
	entries, readErr := os.ReadDir(svc.cfg.ScratchDir)
	if readErr == nil {
		assert.Empty(t, entries)
	} else {
		assert.True(t, os.IsNotExist(readErr))
	}
}

func TestVerifyFileReportsMismatch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	resp, err := svc.VerifyFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	assert.Equal(t, resp.ExpectedHash, resp.ActualHash)

	require.NoError(t, svc.dbc.GetDB().
		Model(&model.File{}).
		Where("id = ?", file.ID).
		Update("content_hash", "deadbeef").Error)

	resp, err = svc.VerifyFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Equal(t, "deadbeef", resp.ExpectedHash)
	assert.NotEqual(t, resp.ExpectedHash, resp.ActualHash)
}

func TestListFilesCoversOwnAndTeam(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedTeam(t, svc, "t1", 1000, "alice", "bob")

	own := uploadSample(t, svc, "bob", "own.txt", "mine", "")
	team := uploadSample(t, svc, "alice", "team.txt", "ours", "t1")
	_ = uploadSample(t, svc, "alice", "private.txt", "hers", "")

	resp, err := svc.ListFiles(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, int64(2), resp.Total)

	ids := []string{resp.Files[0].ID, resp.Files[1].ID}
	assert.Contains(t, ids, own.ID)
	assert.Contains(t, ids, team.ID)
}

func TestDeleteFileIdempotentAndReleasesQuota(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seedTeam(t, svc, "t1", 100, "alice")
	file := uploadSample(t, svc, "alice", "a.txt", "0123456789", "t1")

	resp, err := svc.DeleteFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.True(t, resp.Deleted)

	used, _, err := svc.ledger.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	// 重复删除幂等，配额不会二次释放
	resp, err = svc.DeleteFile(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.True(t, resp.Deleted)

	used, _, err = svc.ledger.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	_, err = svc.Retrieve(ctx, "alice", file.ID, ModeView)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRequiresPermission(t *testing.T) {
	svc := newTestService(t)

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	_, err := svc.DeleteFile(context.Background(), "mallory", file.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestRetrieveExpiredFileGone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	file := uploadSample(t, svc, "alice", "a.txt", "hello", "")

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.File{}).
		Where("id = ?", file.ID).
		Update("expires_at", past).Error)

	_, err := svc.Retrieve(ctx, "alice", file.ID, ModeView)
	require.ErrorIs(t, err, ErrGone)
}

func TestSweepExpiredFiles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	expired := uploadSample(t, svc, "alice", "old.txt", "stale", "")
	alive := uploadSample(t, svc, "alice", "new.txt", "fresh", "")

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, svc.dbc.GetDB().
		Model(&model.File{}).
		Where("id = ?", expired.ID).
		Update("expires_at", past).Error)

	n, err := svc.SweepExpiredFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Retrieve(ctx, "alice", expired.ID, ModeView)
	require.ErrorIs(t, err, ErrNotFound)

	ret, err := svc.Retrieve(ctx, "alice", alive.ID, ModeView)
	require.NoError(t, err)
	ret.Cleanup()
}
