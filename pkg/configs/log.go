package configs

import "github.com/spf13/viper"

// LogConfig 日志配置. 控制台与文件可同时输出，文件由 lumberjack 轮转.
type LogConfig struct {
	Level   string        `mapstructure:"level"   rule:"oneof=trace debug info warn error fatal panic disabled"`
	Console string        `mapstructure:"console" rule:"oneof=stdout stderr none"`
	JSON    bool          `mapstructure:"json"` // 控制台输出 JSON 而非彩色文本
	File    LogFileConfig `mapstructure:"file"`
}

// LogFileConfig 文件日志，始终为 JSON 格式.
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  rule:"min=1"`
	MaxBackups int    `mapstructure:"max_backups"  rule:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" rule:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

func (l *LogConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", "stderr")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/"+AppName+".log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.max_age_days", 28)
	v.SetDefault("log.file.compress", true)
}
