// Package service 实现文件保险库的业务逻辑.
// 存储客户端从请求上下文取得；密文引擎、存储代理等应用级组件在启动时注入一次.
package service

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oklog/ulid"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/configs"
	ctxPkg "github.com/yeisme/filevault/pkg/context"
	"github.com/yeisme/filevault/pkg/internal/authz"
	"github.com/yeisme/filevault/pkg/internal/broker"
	"github.com/yeisme/filevault/pkg/internal/quota"
	"github.com/yeisme/filevault/pkg/internal/storage/db"
	"github.com/yeisme/filevault/pkg/internal/storage/kv"
	"github.com/yeisme/filevault/pkg/internal/storage/mq"
	"github.com/yeisme/filevault/pkg/internal/vault"
	nlog "github.com/yeisme/filevault/pkg/log"
)

// 全局单例的 ULID 熵源，使用单调递增策略，确保同一毫秒内生成的 ULID 具有排序稳定性。
var ulidEntropy = ulid.Monotonic(crand.Reader, 0)

// 启动时注入的应用级组件.
var (
	appEngine   *vault.Engine
	appBroker   *broker.Broker
	appRecorder audit.Recorder = audit.NopRecorder{}
	appVaultCfg *configs.VaultConfig
)

// Setup 注入应用级组件，应在 HTTP 服务启动前调用一次.
func Setup(engine *vault.Engine, b *broker.Broker, recorder audit.Recorder, cfg *configs.VaultConfig) {
	appEngine = engine
	appBroker = b
	appRecorder = recorder
	appVaultCfg = cfg
}

// VaultService 承载文件与分享的全部业务操作.
type VaultService struct {
	dbc *db.Client
	kvc *kv.Client
	mqc *mq.Client

	engine     *vault.Engine
	broker     *broker.Broker
	ledger     *quota.Ledger
	authorizer authz.Authorizer
	recorder   audit.Recorder
	cfg        *configs.VaultConfig
}

// NewVaultService 从请求上下文装配服务实例.
func NewVaultService(c context.Context) *VaultService {
	svc := &VaultService{
		dbc:      ctxPkg.GetDBClient(c),
		kvc:      ctxPkg.GetKVClient(c),
		mqc:      ctxPkg.GetMQClient(c),
		engine:   appEngine,
		broker:   appBroker,
		recorder: appRecorder,
		cfg:      appVaultCfg,
	}

	if svc.dbc == nil || svc.dbc.GetDB() == nil {
		nlog.Logger().Warn().Msg("DB client not initialized, VaultService features limited")
	} else {
		svc.ledger = quota.NewLedger(svc.dbc.GetDB())
		svc.authorizer = authz.NewDBAuthorizer(svc.dbc.GetDB())
	}

	return svc
}

// newFileID 生成带前缀的 ULID 字符串，形如 "f_01H...".
func newFileID(t time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(t), ulidEntropy)
	return "f_" + id.String()
}

// newShareID 生成带前缀的 ULID 字符串，形如 "sh_01H...".
func newShareID(t time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(t), ulidEntropy)
	return "sh_" + id.String()
}

// newShareToken 生成 64 字符十六进制访问令牌，熵为 32 随机字节.
func newShareToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// randHex 生成 n 字节随机数的十六进制串，用于临时文件名.
func randHex(n int) string {
	buf := make([]byte, n)
	_, _ = crand.Read(buf)

	return hex.EncodeToString(buf)
}
