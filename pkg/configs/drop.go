package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultUploadLockStripes = 256 // 上传提交锁分片数
	DefaultThumbnailWidth    = 260 // 缩略图最大宽度
	DefaultThumbnailHeight   = 180 // 缩略图最大高度
	DefaultListingPageSize   = 50  // 每页文件数
)

type (
	// UploadConfig 上传流水线配置.
	UploadConfig struct {
		// StrictChecksum 为 true 时客户端提供的 Content-MD5 不匹配将拒绝上传，默认仅记录日志.
		StrictChecksum bool `mapstructure:"strict_checksum"`
		// MaxSizeMB 单个文件大小上限（MB），0 表示不限制.
		MaxSizeMB int64 `mapstructure:"max_size_mb" rule:"min=0"`
		// LockStripes 按 (tag, filename) 哈希分片的提交锁数量.
		LockStripes int `mapstructure:"lock_stripes" rule:"min=1,max=65536"`
	}

	// ThumbnailConfig 缩略图配置.
	ThumbnailConfig struct {
		Width   int `mapstructure:"width"   rule:"min=16,max=4096"`
		Height  int `mapstructure:"height"  rule:"min=16,max=4096"`
		Quality int `mapstructure:"quality" rule:"min=1,max=100"` // JPEG 质量
	}

	// ListingConfig 文件列表配置.
	ListingConfig struct {
		PageSize int `mapstructure:"page_size" rule:"min=1,max=1000"`
	}
)

// MaxSizeBytes 返回单个文件字节上限，0 表示不限制.
func (c *UploadConfig) MaxSizeBytes() int64 {
	return c.MaxSizeMB << 20
}

func (c *UploadConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("upload.strict_checksum", false)
	v.SetDefault("upload.max_size_mb", 0)
	v.SetDefault("upload.lock_stripes", DefaultUploadLockStripes)
}

func (c *ThumbnailConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("thumbnail.width", DefaultThumbnailWidth)
	v.SetDefault("thumbnail.height", DefaultThumbnailHeight)
	v.SetDefault("thumbnail.quality", 85)
}

func (c *ListingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("listing.page_size", DefaultListingPageSize)
}
