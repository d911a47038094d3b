package configs

import "github.com/spf13/viper"

const (
	DefaultAuditEnabled   = true
	DefaultAuditQueueSize = 1024 // 异步队列容量，满时丢弃并计数
	DefaultAuditPublishMQ = true // 是否同时把事件发布到消息队列
)

// AuditConfig 审计事件记录配置.
type AuditConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	QueueSize int  `mapstructure:"queue_size" rule:"min=1,max=65536"`
	PublishMQ bool `mapstructure:"publish_mq"`
}

func (c *AuditConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("audit.enabled", DefaultAuditEnabled)
	v.SetDefault("audit.queue_size", DefaultAuditQueueSize)
	v.SetDefault("audit.publish_mq", DefaultAuditPublishMQ)
}
