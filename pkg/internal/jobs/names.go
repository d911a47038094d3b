package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobFileExpirySweep = "file.expiry_sweep"
	JobCacheIdleSweep  = "cache.idle_sweep"
)

// Cron 表达式常量.
const (
	CronFileExpirySweep = "15 * * * *" // 每小时 15 分清理过期文件
	CronCacheIdleSweep  = "45 3 * * *" // 每天 03:45 逐出闲置密文缓存
)
