// Package configs 管理应用程序配置，包括数据库、存储目录、缓存与事件队列的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// 配置在启动时构造一次，以指针形式显式传入各组件，不再依赖全局变量.
//
// Example:
//
//	loader, err := configs.NewLoader("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port, cfg.Storage.FileRoot)
//
// Example watching for changes:
//
//	loader.OnChange(func(cfg *configs.AppConfig) {
//		fmt.Println("new sweep cron:", cfg.Lifecycle.SweepCron)
//	})
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/tagdrop/pkg/rule"
)

// AppName 应用名称，用于环境变量前缀、默认文件名等.
const AppName = "tagdrop"

// AppVersion 应用版本.
var AppVersion = "0.1.0"

type (
	// AppConfig 应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 服务器配置，端口、调试模式等
		DB             DBConfig             `mapstructure:"db"`              // DBConfig 元数据库配置
		Storage        StorageConfig        `mapstructure:"storage"`         // StorageConfig 文件、缩略图与暂存目录
		Upload         UploadConfig         `mapstructure:"upload"`          // UploadConfig 上传流水线
		Thumbnail      ThumbnailConfig      `mapstructure:"thumbnail"`       // ThumbnailConfig 缩略图
		Listing        ListingConfig        `mapstructure:"listing"`         // ListingConfig 文件列表
		Lifecycle      LifecycleConfig      `mapstructure:"lifecycle"`       // LifecycleConfig 过期清理
		Security       SecurityConfig       `mapstructure:"security"`        // SecurityConfig 密钥与失败惩罚
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 指标
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 链路追踪
		KV             KVConfig             `mapstructure:"kv"`              // KVConfig 标签配置缓存
		MQ             MQConfig             `mapstructure:"mq"`              // MQConfig 消息队列
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 事件开关
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig 元数据库熔断
	}
)

// Loader 负责读取、校验与热重载配置.
type Loader struct {
	v *viper.Viper

	mu        sync.Mutex
	current   *AppConfig
	listeners []func(*AppConfig)
}

// NewLoader 创建配置加载器，支持多种格式(yaml、json、toml、dotenv).
// path 可以是文件或目录；目录下找不到配置文件时仅使用默认值与环境变量.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	setAllDefaults(v)

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Loader{v: v}, nil
}

// Load 解析并校验配置.
func (l *Loader) Load() (*AppConfig, error) {
	cfg, err := decode(l.v)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()

	if cfg.Server.ReloadConfig {
		l.watch()
	}

	return cfg, nil
}

// OnChange 注册配置变更回调，仅在 server.reload_config 开启时触发.
func (l *Loader) OnChange(fn func(*AppConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.listeners = append(l.listeners, fn)
}

// Current 返回最近一次成功解析的配置.
func (l *Loader) Current() *AppConfig {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.current
}

// Viper 返回底层 viper 实例.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

func (l *Loader) watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(l.v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config %s changed but is invalid: %v\n", e.Name, err)

			return
		}

		l.mu.Lock()
		l.current = cfg
		listeners := append([]func(*AppConfig){}, l.listeners...)
		l.mu.Unlock()

		for _, fn := range listeners {
			fn(cfg)
		}
	})
	l.v.WatchConfig()
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 按 rule 标签校验各个配置段.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Default 返回仅包含默认值的配置，主要用于测试与命令行工具.
func Default() *AppConfig {
	v := viper.New()
	setAllDefaults(v)

	var cfg AppConfig
	// 默认值总是可以解析
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.Storage.setDefaults(v)
	cfg.Upload.setDefaults(v)
	cfg.Thumbnail.setDefaults(v)
	cfg.Listing.setDefaults(v)
	cfg.Lifecycle.setDefaults(v)
	cfg.Security.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v)
}
