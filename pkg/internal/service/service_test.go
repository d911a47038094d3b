package service

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/configs"
	"github.com/yeisme/filevault/pkg/internal/authz"
	"github.com/yeisme/filevault/pkg/internal/broker"
	"github.com/yeisme/filevault/pkg/internal/model"
	"github.com/yeisme/filevault/pkg/internal/quota"
	"github.com/yeisme/filevault/pkg/internal/storage/db"
	"github.com/yeisme/filevault/pkg/internal/types"
	"github.com/yeisme/filevault/pkg/internal/vault"
)

const testKeyHex = "2b7e151628aed2a6abf7158809cf4f3c2b7e151628aed2a6abf7158809cf4f3c"

// newTestService 组装一个不依赖外部服务的 VaultService：
// 内存 sqlite、纯本地 broker、空审计器，KV 与 MQ 置空.
func newTestService(t *testing.T) *VaultService {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&model.File{}, &model.Share{}, &model.Team{}, &model.TeamMember{},
	))

	key, err := hex.DecodeString(testKeyHex)
	require.NoError(t, err)

	engine, err := vault.NewEngine(key)
	require.NoError(t, err)

	root := t.TempDir()
	b, err := broker.New(nil, broker.Options{
		CacheDir: filepath.Join(root, "cache"),
		MaxBytes: 1 << 30,
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	return &VaultService{
		dbc:        &db.Client{DB: gdb},
		engine:     engine,
		broker:     b,
		ledger:     quota.NewLedger(gdb),
		authorizer: authz.NewDBAuthorizer(gdb),
		recorder:   audit.NopRecorder{},
		cfg: &configs.VaultConfig{
			KeyHex:        testKeyHex,
			CacheDir:      filepath.Join(root, "cache"),
			ScratchDir:    filepath.Join(root, "scratch"),
			MaxUploadMB:   1,
			CacheMaxMB:    64,
			CacheTTLHours: 1,
			ShareBaseURL:  "http://localhost:8080/share",
		},
	}
}

// stagePlain 把明文内容落盘为暂存文件，模拟 multipart 保存结果.
func stagePlain(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "staged.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// uploadSample 上传一份样例文件并返回元数据.
func uploadSample(t *testing.T, svc *VaultService, user, name, content, teamID string) types.FileInfo {
	t.Helper()

	resp, err := svc.Upload(context.Background(), user, &UploadParams{
		PlainPath:    stagePlain(t, content),
		OriginalName: name,
		ContentType:  "text/plain",
		Size:         int64(len(content)),
		TeamID:       teamID,
	})
	require.NoError(t, err)

	return resp.File
}

// seedTeam 建立团队及其活跃成员.
func seedTeam(t *testing.T, svc *VaultService, teamID string, quotaBytes int64, members ...string) {
	t.Helper()

	gdb := svc.dbc.GetDB()
	require.NoError(t, gdb.Create(&model.Team{
		ID:           teamID,
		Name:         "team " + teamID,
		StorageQuota: quotaBytes,
	}).Error)

	for _, m := range members {
		require.NoError(t, gdb.Create(&model.TeamMember{
			TeamID: teamID,
			UserID: m,
			Status: model.MemberStatusActive,
		}).Error)
	}
}

// readRetrieval 读取检索结果的明文并清理临时文件.
func readRetrieval(t *testing.T, ret *Retrieval) string {
	t.Helper()

	b, err := os.ReadFile(ret.Path)
	require.NoError(t, err)
	ret.Cleanup()

	return string(b)
}
