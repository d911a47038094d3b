// Package app 提供应用程序的初始化和启动流程.
package app

import (
	contextPkg "context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/filevault/pkg/audit"
	"github.com/yeisme/filevault/pkg/configs"
	"github.com/yeisme/filevault/pkg/internal/broker"
	"github.com/yeisme/filevault/pkg/internal/jobs"
	"github.com/yeisme/filevault/pkg/internal/router"
	"github.com/yeisme/filevault/pkg/internal/service"
	"github.com/yeisme/filevault/pkg/internal/storage"
	"github.com/yeisme/filevault/pkg/internal/vault"
	"github.com/yeisme/filevault/pkg/log"
	"github.com/yeisme/filevault/pkg/metrics"
	"github.com/yeisme/filevault/pkg/middleware"
	"github.com/yeisme/filevault/pkg/scheduler"
)

const shutdownTimeout = 15 * time.Second

// App 聚合 HTTP 引擎与应用级组件.
type App struct {
	Engine *gin.Engine

	config   *configs.AppConfig
	sched    *scheduler.Scheduler
	recorder audit.Recorder
	manager  *storage.Manager
}

// NewApp 完成全部初始化：配置、日志、指标、存储、密文引擎、
// 存储代理、审计器、service 注入、路由与定时任务.
func NewApp(configPath string) *App {
	ctx := contextPkg.Background()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	config := configs.GetConfig()

	log.Init()
	l := log.Logger()

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	// 密文引擎：密钥启动时解析一次，进程生命周期内不可变
	key, err := config.Vault.Key()
	if err != nil {
		fmt.Printf("Error decoding vault key: %v\n", err)
		os.Exit(1)
	}

	engine, err := vault.NewEngine(key)
	if err != nil {
		fmt.Printf("Error initializing cipher engine: %v\n", err)
		os.Exit(1)
	}

	// 两级存储代理
	b, err := broker.New(manager.GetS3Client(), broker.Options{
		CacheDir:  config.Vault.CacheDir,
		MaxBytes:  config.Vault.CacheMaxBytes(),
		TTL:       config.Vault.CacheTTL(),
		Replicate: config.S3.Replicate,
	})
	if err != nil {
		fmt.Printf("Error initializing storage broker: %v\n", err)
		os.Exit(1)
	}

	// 审计记录器（异步，满队列丢弃）
	recorder := audit.NewRecorder(&config.Audit, l, manager.GetMQClient())

	service.Setup(engine, b, recorder, &config.Vault)

	// 定时任务：过期文件清理 + 缓存闲置逐出
	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error initializing scheduler: %v\n", err)
		os.Exit(1)
	}

	if err := jobs.RegisterCronJobs(sched, manager, b); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	ginEngine := gin.New()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	ginEngine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		middleware.AuthMiddleware(config.Auth),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.CircuitBreakerMiddleware(config.CircuitBreaker),
		middleware.PrometheusMiddleware(),
		middleware.StorageMiddleware(manager),
		middleware.SchedulerMiddleware(sched),
	)

	router.RegisterAPIRoutes(ginEngine)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, ginEngine)
	}

	return &App{
		Engine:   ginEngine,
		config:   config,
		sched:    sched,
		recorder: recorder,
		manager:  manager,
	}
}

// Run 启动 HTTP 服务并阻塞到收到退出信号，随后优雅关停.
func (a *App) Run() error {
	a.sched.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Logger().Info().Str("addr", srv.Addr).Msg("filevault listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Logger().Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := contextPkg.WithTimeout(contextPkg.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Logger().Error().Err(err).Msg("http server shutdown failed")
	}

	if err := a.sched.Stop(); err != nil {
		log.Logger().Error().Err(err).Msg("scheduler shutdown failed")
	}

	// 审计器最后关，保证在途事件落盘
	if err := a.recorder.Close(); err != nil {
		log.Logger().Error().Err(err).Msg("audit recorder close failed")
	}

	return nil
}
