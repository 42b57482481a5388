package configs

import (
	"github.com/spf13/viper"
)

// MQType 消息队列类型.
type MQType string

const (
	MQTypeGoChannel MQType = "gochannel" // 进程内发布订阅
	MQTypeNATS      MQType = "nats"

	DefaultMQURL             = "nats://localhost:4222"
	DefaultMaxReconnects     = 5     // 默认最大重连次数.
	DefaultReconnectWait     = 5     // 默认重连等待时间（秒）.
	DefaultPingInterval      = 20    // 默认ping间隔 (秒)
	DefaultBufferSize        = 32768 // 默认缓冲区大小 (32KB)
	DefaultChannelBufferSize = 256   // gochannel 输出缓冲
)

// MQConfig 消息队列配置.
type MQConfig struct {
	Type          MQType       `mapstructure:"type"           rule:"oneof=gochannel nats"`
	URL           string       `mapstructure:"url"`
	ClusterURLs   []string     `mapstructure:"cluster_urls"`
	User          string       `mapstructure:"user"`
	Password      string       `mapstructure:"password"`
	JWT           string       `mapstructure:"jwt"`
	NKey          string       `mapstructure:"nkey"`
	ClientID      string       `mapstructure:"client_id"`
	MaxReconnects int          `mapstructure:"max_reconnects" rule:"min=0,max=100"`
	ReconnectWait int          `mapstructure:"reconnect_wait" rule:"min=1,max=300"`
	PingInterval  int          `mapstructure:"ping_interval"  rule:"min=1,max=300"`
	BufferSize    int          `mapstructure:"buffer_size"    rule:"min=1024,max=1048576"`
	ChannelBuffer int64        `mapstructure:"channel_buffer" rule:"min=0"`
	JetStream     JetStreamCfg `mapstructure:"jetstream"`
}

// JetStreamCfg NATS JetStream 配置.
type JetStreamCfg struct {
	Enabled       bool   `mapstructure:"enabled"`
	AutoProvision bool   `mapstructure:"auto_provision"`
	TrackMsgID    bool   `mapstructure:"track_msg_id"`
	AckAsync      bool   `mapstructure:"ack_async"`
	DurablePrefix string `mapstructure:"durable_prefix"`
}

// GetMQType 返回当前配置的消息队列类型.
func (c *MQConfig) GetMQType() MQType {
	return c.Type
}

// setDefaults 设置MQ配置的默认值.
func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeGoChannel)
	v.SetDefault("mq.url", DefaultMQURL)
	v.SetDefault("mq.cluster_urls", []string{})
	v.SetDefault("mq.client_id", AppName)
	v.SetDefault("mq.max_reconnects", DefaultMaxReconnects)
	v.SetDefault("mq.reconnect_wait", DefaultReconnectWait)
	v.SetDefault("mq.ping_interval", DefaultPingInterval)
	v.SetDefault("mq.buffer_size", DefaultBufferSize)
	v.SetDefault("mq.channel_buffer", DefaultChannelBufferSize)

	v.SetDefault("mq.jetstream.enabled", true)
	v.SetDefault("mq.jetstream.auto_provision", true)
	v.SetDefault("mq.jetstream.track_msg_id", true)
	v.SetDefault("mq.jetstream.ack_async", false)
	v.SetDefault("mq.jetstream.durable_prefix", AppName)
}
