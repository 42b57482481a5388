package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分主题）。
type EventsConfig struct {
	Enabled        bool `mapstructure:"enabled"`         // 总开关
	FileStored     bool `mapstructure:"file_stored"`     // 文件写入完成
	FileDownloaded bool `mapstructure:"file_downloaded"` // 文件被下载，量可能很大
	TagReaped      bool `mapstructure:"tag_reaped"`      // 标签过期被清理
	// WarmThumbnails 订阅文件写入事件并提前生成缩略图.
	WarmThumbnails bool `mapstructure:"warm_thumbnails"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.file_stored", true)
	v.SetDefault("events.tag_reaped", true)
	// 下载事件默认关闭，避免噪声过大
	v.SetDefault("events.file_downloaded", false)
	v.SetDefault("events.warm_thumbnails", true)
}
