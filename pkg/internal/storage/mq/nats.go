// NATS 工厂，支持集群 URL、多种认证方式与可选 JetStream.
package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/tagdrop/pkg/configs"
)

const (
	natsDrainTimeout   = 30 * time.Second
	natsFlusherTimeout = 10 * time.Second
	natsCloseTimeout   = 15 * time.Second
	natsAckWait        = 30 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// natsConnOptions 连接与认证选项，JWT 优先于 NKey，NKey 优先于用户名密码.
func natsConnOptions(cfg *configs.MQConfig) []nc.Option {
	opts := []nc.Option{
		nc.Name(cfg.ClientID),
		nc.MaxReconnects(cfg.MaxReconnects),
		nc.ReconnectWait(time.Duration(cfg.ReconnectWait) * time.Second),
		nc.PingInterval(time.Duration(cfg.PingInterval) * time.Second),
		nc.ReconnectBufSize(cfg.BufferSize),
		nc.DrainTimeout(natsDrainTimeout),
		nc.FlusherTimeout(natsFlusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case cfg.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.JWT, cfg.NKey))
	case cfg.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NKey, nil))
	case cfg.User != "":
		opts = append(opts, nc.UserInfo(cfg.User, cfg.Password))
	}

	return opts
}

// natsURL 集群地址优先.
func natsURL(cfg *configs.MQConfig) string {
	if len(cfg.ClusterURLs) > 0 {
		return strings.Join(cfg.ClusterURLs, ",")
	}

	return cfg.URL
}

// natsFactory 创建 NATS Publisher 与 Subscriber. 订阅者以 client_id 为队列组前缀，
// 多个实例消费同一主题时每条事件只处理一次（例如缩略图预热）.
func natsFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	js := cfg.JetStream
	jsCfg := nats.JetStreamConfig{
		Disabled:      !js.Enabled,
		AutoProvision: js.AutoProvision,
		TrackMsgId:    js.TrackMsgID,
		AckAsync:      js.AckAsync,
		DurablePrefix: js.DurablePrefix,
	}

	opts := natsConnOptions(cfg)
	url := natsURL(cfg)
	marshaler := &nats.JSONMarshaler{}

	logger.Debug("connecting to nats", watermill.LogFields{"url": url, "jetstream": js.Enabled})

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         url,
		NatsOptions: opts,
		JetStream:   jsCfg,
		Marshaler:   marshaler,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("nats publisher: %w", err)
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:              url,
		NatsOptions:      opts,
		JetStream:        jsCfg,
		Unmarshaler:      marshaler,
		QueueGroupPrefix: cfg.ClientID,
		CloseTimeout:     natsCloseTimeout,
		AckWaitTimeout:   natsAckWait,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, fmt.Errorf("nats subscriber: %w", err)
	}

	return pub, sub, nil
}
