// Package db 处理元数据库连接，按配置选择 dialector.
package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/tagdrop/pkg/configs"
	nlog "github.com/yeisme/tagdrop/pkg/log"
)

// DialectorFactory 按配置创建 gorm dialector，驱动相关的 DSN 参数在此追加.
type DialectorFactory func(cfg configs.DBConfig) gorm.Dialector

var dialectorFactories = map[configs.Dialect]DialectorFactory{}

// RegisterDialectorFactory 注册方言对应的 dialector，由各驱动文件在 init 中调用.
func RegisterDialectorFactory(dialect configs.Dialect, factory DialectorFactory) {
	dialectorFactories[dialect] = factory
}

// GetRegisteredDBTypes 返回当前构建可用的数据库类型（受 no_mysql 等构建标签影响）.
func GetRegisteredDBTypes() []configs.DBType {
	var types []configs.DBType

	for _, t := range configs.DBTypes() {
		if _, ok := dialectorFactories[t.Dialect()]; ok {
			types = append(types, t)
		}
	}

	return types
}

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB
}

// Options 创建连接时的可选项.
type Options struct {
	// Metrics 启用 gorm prometheus 插件.
	Metrics bool
	// LogLevel gorm 日志级别，默认 Warn.
	LogLevel logger.LogLevel
}

// New 打开数据库连接并测试连通性.
func New(ctx context.Context, cfg configs.DBConfig, opts Options) (*Client, error) {
	factory, exists := dialectorFactories[cfg.Type.Dialect()]
	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	// 配置 GORM 日志
	gormLogger := logger.New(
		nlog.Logger(),
		logger.Config{
			SlowThreshold:             time.Duration(cfg.SlowThreshold) * time.Millisecond,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(factory(cfg), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 SQL DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{DB: db}

	if opts.Metrics {
		if err := client.RegisterGORMMetrics(cfg.Database); err != nil {
			return nil, err
		}
	}

	nlog.Logger().Info().
		Str("dialect", string(cfg.Type.Dialect())).
		Str("database", cfg.Database).
		Msg("数据库连接成功")

	return client, nil
}

// Migrate 自动迁移表结构.
func (c *Client) Migrate(ctx context.Context, models ...any) error {
	if err := c.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}

// Ping 检查数据库连通性.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接池.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

const defaultGORMMetricsRefreshInterval = 15 // 秒

// RegisterGORMMetrics 注册 GORM 连接池指标.
func (c *Client) RegisterGORMMetrics(dbName string) error {
	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: defaultGORMMetricsRefreshInterval,
		StartServer:     false, // 由 /metrics 统一暴露
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("failed to register GORM prometheus plugin: %w", err)
	}

	return nil
}
