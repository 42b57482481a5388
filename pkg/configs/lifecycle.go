package configs

import "github.com/spf13/viper"

// DefaultSweepCron 默认每 5 分钟清理一次.
const DefaultSweepCron = "*/5 * * * *"

// LifecycleConfig 过期清理配置.
type LifecycleConfig struct {
	Enabled   bool   `mapstructure:"enabled"`                    // 是否按 cron 自动清理
	SweepCron string `mapstructure:"sweep_cron" rule:"required"` // cron 表达式（5 段）
	ScanDisk  bool   `mapstructure:"scan_disk"`                  // 是否扫描磁盘上没有元数据的标签目录
}

func (c *LifecycleConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("lifecycle.enabled", true)
	v.SetDefault("lifecycle.sweep_cron", DefaultSweepCron)
	v.SetDefault("lifecycle.scan_disk", true)
}
