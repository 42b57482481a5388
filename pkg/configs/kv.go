package configs

import (
	"time"

	"github.com/spf13/viper"
)

// KVConfig 标签配置缓存. 每次上传、下载都要读取标签，缓存可减少元数据库压力.
type KVConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	Type       string             `mapstructure:"type" rule:"oneof=memory redis nats groupcache"`
	TagTTL     time.Duration      `mapstructure:"tag_ttl"`
	Prefix     string             `mapstructure:"prefix"`
	Redis      RedisKVConfig      `mapstructure:"redis"`
	NATS       NATSKVConfig       `mapstructure:"nats"`
	Groupcache GroupcacheKVConfig `mapstructure:"groupcache"`
}

type RedisKVConfig struct {
	Addr        string        `mapstructure:"addr" rule:"hostname_port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"   rule:"min=0,max=15"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// NATSKVConfig 使用 JetStream KV bucket，bucket 不存在时自动创建.
type NATSKVConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Bucket   string `mapstructure:"bucket"   rule:"required"`
	Replicas int    `mapstructure:"replicas" rule:"min=1,max=5"`
}

// GroupcacheKVConfig peers 为空时只在本进程内缓存.
type GroupcacheKVConfig struct {
	Name       string   `mapstructure:"name"        rule:"required"`
	CacheBytes int64    `mapstructure:"cache_bytes" rule:"min=1048576"`
	Peers      []string `mapstructure:"peers"`
	Self       string   `mapstructure:"self"`
}

func (c *KVConfig) setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"kv.enabled": true,
		"kv.type":    "memory",
		"kv.tag_ttl": 30 * time.Second,
		"kv.prefix":  AppName + ":",

		"kv.redis.addr":         "localhost:6379",
		"kv.redis.dial_timeout": 3 * time.Second,

		"kv.nats.url":      "nats://localhost:4222",
		"kv.nats.bucket":   AppName + "-kv",
		"kv.nats.replicas": 1,

		"kv.groupcache.name":        AppName + "-tags",
		"kv.groupcache.cache_bytes": 16 << 20,
		"kv.groupcache.self":        "http://localhost:8080",
	}

	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
