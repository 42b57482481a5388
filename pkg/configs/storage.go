package configs

import (
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultFileRoot  = "data/files"  // 文件根目录
	DefaultThumbRoot = "data/thumbs" // 缩略图根目录
	DefaultTempRoot  = "data/tmp"    // 上传暂存目录，需与文件根目录位于同一文件系统
)

// StorageConfig 磁盘布局配置，三个根目录互不重叠.
type StorageConfig struct {
	FileRoot  string `mapstructure:"file_root"  rule:"required,nefield=ThumbRoot"`
	ThumbRoot string `mapstructure:"thumb_root" rule:"required"`
	TempRoot  string `mapstructure:"temp_root"  rule:"required,nefield=FileRoot"`
}

// Abs 返回各目录的绝对路径形式.
func (c StorageConfig) Abs() (StorageConfig, error) {
	var (
		out StorageConfig
		err error
	)

	if out.FileRoot, err = filepath.Abs(c.FileRoot); err != nil {
		return out, err
	}

	if out.ThumbRoot, err = filepath.Abs(c.ThumbRoot); err != nil {
		return out, err
	}

	if out.TempRoot, err = filepath.Abs(c.TempRoot); err != nil {
		return out, err
	}

	return out, nil
}

func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.file_root", DefaultFileRoot)
	v.SetDefault("storage.thumb_root", DefaultThumbRoot)
	v.SetDefault("storage.temp_root", DefaultTempRoot)
}
