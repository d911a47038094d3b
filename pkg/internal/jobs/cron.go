// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"

	ctxPkg "github.com/yeisme/filevault/pkg/context"
	"github.com/yeisme/filevault/pkg/internal/broker"
	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/internal/storage"
	"github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 每小时清理超过保留期的文件（软删除并释放配额）
//   - 每天凌晨逐出长时间未访问的本地密文缓存
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, b *broker.Broker) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	if err := sched.AddCron(baseCtx, JobFileExpirySweep, CronFileExpirySweep, runFileExpirySweep); err != nil {
		return err
	}

	return sched.AddCron(baseCtx, JobCacheIdleSweep, CronCacheIdleSweep, func(ctx context.Context) {
		runCacheIdleSweep(b)
	})
}

// runFileExpirySweep 软删除超过保留期的文件.
func runFileExpirySweep(ctx context.Context) {
	l := log.Logger().With().Str("job", JobFileExpirySweep).Logger()

	svc := service.NewVaultService(ctx)

	n, err := svc.SweepExpiredFiles(ctx)
	if err != nil {
		l.Error().Err(err).Msg("expiry sweep failed")
		return
	}

	if n > 0 {
		l.Info().Int("swept", n).Msg("expired files removed")
	}
}

// runCacheIdleSweep 逐出超过 TTL 未访问且有远端副本的缓存条目.
func runCacheIdleSweep(b *broker.Broker) {
	l := log.Logger().With().Str("job", JobCacheIdleSweep).Logger()

	if b == nil {
		l.Warn().Msg("broker not initialized, skip cache sweep")
		return
	}

	n := b.SweepIdle()
	if n > 0 {
		l.Info().Int("evicted", n).Int64("usage_bytes", b.CacheUsage()).Msg("idle cache entries evicted")
	}
}
