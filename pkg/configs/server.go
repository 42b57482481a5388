package configs

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务配置.
type ServerConfig struct {
	Host         string   `mapstructure:"host"     rule:"ip"`
	Port         int      `mapstructure:"port"     rule:"min=1,max=65535"`
	Debug        bool     `mapstructure:"debug"`
	ReloadConfig bool     `mapstructure:"reload_config"`                 // 监听配置文件变更
	Timeout      int      `mapstructure:"timeout"  rule:"min=1,max=300"` // 读请求头超时（秒），空闲超时取其两倍
	Shutdown     int      `mapstructure:"shutdown" rule:"min=1,max=300"` // 优雅退出等待（秒）
	CORSOrigins  []string `mapstructure:"cors_origins"`                  // 为空时允许任意来源，支持 https://*.example.com
}

// GetTimeoutDuration 请求头读取超时. 上传与下载是流式的，不设置整体读写超时.
func (s *ServerConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s *ServerConfig) GetShutdownDuration() time.Duration {
	return time.Duration(s.Shutdown) * time.Second
}

// Addr 监听地址，IPv6 地址会加上方括号.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.reload_config", true)
	v.SetDefault("server.timeout", 30)
	v.SetDefault("server.shutdown", 15)
	v.SetDefault("server.cors_origins", []string{})
}
