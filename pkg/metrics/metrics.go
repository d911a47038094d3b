// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集应用和系统指标.
//
// Example:
//
//	import "github.com/yeisme/filevault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/files").Inc()
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/filevault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 活跃连接数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// UploadCounter 上传计数器，按最终状态区分.
	UploadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vault_uploads_total",
			Help: "Total number of file uploads by result",
		},
		[]string{"result"},
	)

	// CacheHits 本地密文缓存命中数.
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_cache_hits_total",
			Help: "Local ciphertext cache hits",
		},
	)

	// CacheMisses 本地密文缓存未命中数（触发远端拉取）.
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_cache_misses_total",
			Help: "Local ciphertext cache misses causing a remote fetch",
		},
	)

	// CacheEvictions 本地密文缓存逐出数.
	CacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_cache_evictions_total",
			Help: "Local ciphertext cache evictions",
		},
	)

	// IntegrityFailures 密文哈希校验失败数.
	IntegrityFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_integrity_failures_total",
			Help: "Ciphertext hash verification failures",
		},
	)

	// AuditDropped 审计事件因队列满被丢弃的数量.
	AuditDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_audit_dropped_total",
			Help: "Audit events dropped because the queue was full",
		},
	)

	// QuotaRejections 因配额不足被拒绝的上传数.
	QuotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vault_quota_rejections_total",
			Help: "Uploads rejected because the team quota was exceeded",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
)

// InitMetrics 初始化Metrics.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	// 注册标准收集器
	if config.RuntimeMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// 注册自定义指标
	registry.MustRegister(
		RequestCounter, RequestDuration, ActiveConnections,
		UploadCounter, CacheHits, CacheMisses, CacheEvictions,
		IntegrityFailures, AuditDropped, QuotaRejections,
	)

	return nil
}

// StartMetricsServer 在给定引擎上挂载 /metrics 端点.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return nil
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// NewCounter 创建新的计数器指标.
func NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
	registry.MustRegister(counter)

	return counter
}

// NewGauge 创建新的仪表盘指标.
func NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
	registry.MustRegister(gauge)

	return gauge
}

// NewHistogram 创建新的直方图指标.
func NewHistogram(name, help string, labels []string) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: prometheus.DefBuckets,
		},
		labels,
	)
	registry.MustRegister(histogram)

	return histogram
}
