// Package storage 聚合进程使用的基础设施：元数据库、标签缓存与事件队列，
// 并按配置组装带熔断与缓存的元数据仓库.
//
// Example:
//
//	mgr, err := storage.Open(ctx, cfg)
//	if err != nil {
//	    // 处理错误
//	}
//	defer mgr.Close()
//
//	svc := service.New(service.Deps{Repo: mgr.Repo, Config: cfg, Events: mgr.Events})
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	dbc "github.com/yeisme/tagdrop/pkg/internal/storage/db"
	"github.com/yeisme/tagdrop/pkg/internal/storage/kv"
	"github.com/yeisme/tagdrop/pkg/internal/storage/mq"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/queue"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB     *dbc.Client
	KV     kv.KVStore // kv.enabled 为 false 时为 nil
	MQ     *mq.Client // events.enabled 为 false 时为 nil
	Repo   repository.Repository
	Events *queue.Publisher // MQ 为 nil 时为 nil，调用是安全的
}

// Options 打开存储时的可选项.
type Options struct {
	// Registry 非空时为事件队列挂载 watermill 指标.
	Registry prometheus.Registerer
}

// Open 按配置连接元数据库（db.auto_migrate 开启时迁移表结构），再按需打开标签缓存与事件队列.
// 任一步失败时已打开的资源会被关闭.
func Open(ctx context.Context, cfg *configs.AppConfig, opts Options) (m *Manager, err error) {
	m = &Manager{}

	defer func() {
		if err != nil {
			_ = m.Close()
			m = nil
		}
	}()

	if m.DB, err = dbc.New(ctx, cfg.DB, dbc.Options{Metrics: cfg.Metrics.Enabled && cfg.Metrics.DBMetrics}); err != nil {
		return m, err
	}

	if cfg.DB.AutoMigrate {
		if err = m.DB.Migrate(ctx, model.All()...); err != nil {
			return m, err
		}
	}

	var repo repository.Repository = repository.NewGorm(m.DB.DB)
	repo = repository.NewBreaker(repo, cfg.CircuitBreaker)

	if cfg.KV.Enabled {
		if m.KV, err = kv.New(ctx, cfg.KV); err != nil {
			return m, fmt.Errorf("open kv: %w", err)
		}

		repo = repository.NewCachedTags(repo, m.KV, cfg.KV.Prefix, cfg.KV.TagTTL)
	}

	m.Repo = repo

	if cfg.Events.Enabled {
		if m.MQ, err = mq.New(ctx, cfg.MQ, mq.Options{Registry: opts.Registry}); err != nil {
			return m, fmt.Errorf("open mq: %w", err)
		}

		m.Events = queue.NewPublisher(m.MQ.Publisher(), cfg.Events)
	}

	l := nlog.Component("storage")
	l.Info().
		Bool("kv", m.KV != nil).
		Bool("events", m.MQ != nil).
		Msg("storage manager initialized")

	return m, nil
}

// Ping 检查元数据库连通性.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.Repo == nil {
		return errors.New("storage not initialized")
	}

	return m.Repo.Ping(ctx)
}

// Close 依次关闭事件队列、缓存与数据库.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
