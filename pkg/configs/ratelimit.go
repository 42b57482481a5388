package configs

import "github.com/spf13/viper"

const (
	DefaultRateLimitEnabled     = false
	DefaultRateLimitRPS         = 50.0
	DefaultRateLimitBurst       = 100
	DefaultRateLimitKey         = "ip"
	DefaultUploadRateLimitRPS   = 2.0 // 上传开销大，单独按 IP 收紧
	DefaultUploadRateLimitBurst = 10
)

// RateLimitConfig 速率限制配置.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"min=0"`
	Burst   int     `mapstructure:"burst" rule:"min=0"`
	// Key 选择限流维度：global、ip、header:Header-Name（缺失时退回 IP）
	Key string `mapstructure:"key"`
	// Upload 上传接口在全局限流之外的按 IP 限流，RPS 为 0 时不额外限制.
	Upload UploadRateLimit `mapstructure:"upload"`
}

// UploadRateLimit 上传限流.
type UploadRateLimit struct {
	RPS   float64 `mapstructure:"rps"   rule:"min=0"`
	Burst int     `mapstructure:"burst" rule:"min=0"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.upload.rps", DefaultUploadRateLimitRPS)
	v.SetDefault("rate_limit.upload.burst", DefaultUploadRateLimitBurst)
}
