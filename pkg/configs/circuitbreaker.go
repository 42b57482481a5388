package configs

import (
	"time"

	"github.com/spf13/viper"
)

// CircuitBreakerConfig 元数据库熔断. 只统计 ErrRepositoryUnavailable 类的失败，
// 打开后请求直接返回 503，Timeout 后进入半开状态试探.
type CircuitBreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	FailureRate float64       `mapstructure:"failure_rate"  rule:"min=0,max=1"`
	MinRequests uint32        `mapstructure:"min_requests"` // 窗口内请求数达到该值后才判断失败率
	Interval    time.Duration `mapstructure:"interval"`     // 关闭状态下计数清零周期
	Timeout     time.Duration `mapstructure:"timeout"`      // 打开状态持续时间
	HalfOpenMax uint32        `mapstructure:"half_open_max" rule:"min=1"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.failure_rate", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 10)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 10*time.Second)
	v.SetDefault("circuit_breaker.half_open_max", 5)
}
