// Package app 负责组装并运行服务：配置、日志、追踪、指标、存储、业务服务、调度器与 HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	appcache "github.com/yeisme/tagdrop/pkg/cache"
	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/handle"
	"github.com/yeisme/tagdrop/pkg/internal/jobs"
	"github.com/yeisme/tagdrop/pkg/internal/router"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/internal/storage"
	"github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/metrics"
	"github.com/yeisme/tagdrop/pkg/scheduler"
	"github.com/yeisme/tagdrop/pkg/tracing"
)

// Core 不含 HTTP 的运行时：配置、存储与业务服务，命令行子命令复用.
type Core struct {
	Loader   *configs.Loader
	Config   *configs.AppConfig
	Storage  *storage.Manager
	Services *service.Services
}

// NewCore 读取配置、初始化日志与指标并打开存储.
func NewCore(ctx context.Context, configPath string) (*Core, error) {
	loader, err := configs.NewLoader(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	log.Init(cfg.Log, cfg.Server.Debug)
	metrics.InitMetrics(cfg.Metrics)

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = metrics.GetRegistry()
	}

	mgr, err := storage.Open(ctx, cfg, storage.Options{Registry: reg})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	return &Core{
		Loader:   loader,
		Config:   cfg,
		Storage:  mgr,
		Services: service.New(service.Deps{Repo: mgr.Repo, Config: cfg, Events: mgr.Events}),
	}, nil
}

// Close 关闭存储.
func (c *Core) Close() error {
	return c.Storage.Close()
}

// App 完整的服务进程.
type App struct {
	*Core

	sched  *scheduler.Scheduler
	server *http.Server
	logger zerolog.Logger
}

// New 组装服务进程，不启动任何后台任务.
func New(ctx context.Context, configPath string) (a *App, err error) {
	core, err := NewCore(ctx, configPath)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = core.Close()
		}
	}()

	cfg := core.Config

	if err := tracing.InitTracer(ctx, cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, err
	}

	if err := jobs.RegisterCronJobs(ctx, sched, core.Services.Sweeper, cfg.Lifecycle); err != nil {
		return nil, fmt.Errorf("register cron jobs: %w", err)
	}

	if core.Storage.MQ != nil {
		jobs.RegisterConsumers(core.Storage.MQ, core.Services.Thumbnails, cfg.Events)
	}

	var opts router.Options
	if core.Storage.KV != nil {
		opts = router.Options{Cache: appcache.NewCache(core.Storage.KV, cfg.KV.Prefix), CacheTTL: cfg.KV.TagTTL}
	}

	h := handle.New(core.Services, cfg.Security, core.Storage)

	a = &App{
		Core:  core,
		sched: sched,
		server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router.New(cfg, h, opts),
			ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
			IdleTimeout:       2 * cfg.Server.GetTimeoutDuration(),
		},
		logger: log.Component("app"),
	}

	core.Loader.OnChange(a.reload)

	return a, nil
}

// reload 应用热重载后的配置：日志级别与清理计划.
// 其余配置需要重启进程才能生效.
func (a *App) reload(cfg *configs.AppConfig) {
	log.Init(cfg.Log, cfg.Server.Debug)

	ctx := context.Background()

	if !cfg.Lifecycle.Enabled {
		if err := a.sched.RemoveJobByName(jobs.JobLifecycleSweep); err == nil {
			a.logger.Info().Msg("lifecycle sweep disabled by config reload")
		}

		return
	}

	if err := jobs.RegisterCronJobs(ctx, a.sched, a.Services.Sweeper, cfg.Lifecycle); err != nil {
		a.logger.Error().Err(err).Str("cron", cfg.Lifecycle.SweepCron).Msg("failed to reschedule sweep")

		return
	}

	a.logger.Info().Str("cron", cfg.Lifecycle.SweepCron).Msg("sweep rescheduled")
}

// Run 启动调度器、事件消费者与 HTTP 服务，阻塞直到 ctx 取消或服务出错，然后优雅退出.
func (a *App) Run(ctx context.Context) error {
	a.sched.Start()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if mqc := a.Storage.MQ; mqc != nil {
		go func() {
			if err := mqc.Run(runCtx); err != nil {
				a.logger.Error().Err(err).Msg("event router stopped")
			}
		}()
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.server.Addr).Msg("http server listening")

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		a.logger.Info().Msg("shutting down")
	case err := <-errCh:
		runErr = err
	}

	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.GetShutdownDuration())
	defer done()

	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown 依次停止 HTTP、调度器、事件队列、缓存与数据库，最后刷新追踪数据.
func (a *App) Shutdown(ctx context.Context) error {
	start := time.Now()

	var errs []error

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if err := a.sched.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}

	if err := a.Core.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage close: %w", err))
	}

	if err := tracing.ShutdownTracer(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}

	a.logger.Info().Dur("took", time.Since(start)).Msg("shutdown complete")

	return errors.Join(errs...)
}

// Handler 返回 HTTP 处理器，便于测试.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}
