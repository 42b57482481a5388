// Package mq 提供基于 Watermill 库的统一消息队列操作接口。
// 支持发布/订阅模式，并通过工厂模式抽象不同的 MQ 实现。
//
// 支持的 MQ 类型：
//   - gochannel（进程内，默认）
//   - NATS（支持 JetStream）
//
// 该包提供封装了 Publisher、Subscriber 与 Router 的 Client。
//
// 使用示例：
//
//	client, err := mq.New(ctx, cfg.MQ, mq.Options{Registry: metrics.GetRegistry()})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.AddConsumer("warm-thumbnails", queue.TopicFileStored, func(msg *message.Message) error {
//		fmt.Println(string(msg.Payload))
//		return nil
//	})
//	go client.Run(ctx)
package mq

import (
	"context"
	"errors"
	"fmt"
	"slices"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/tagdrop/pkg/configs"
	nlog "github.com/yeisme/tagdrop/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var (
	factories = map[configs.MQType]Factory{}
)

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型，按名称排序.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// Options 创建 Client 的可选项.
type Options struct {
	// Registry 非空时为 publisher、subscriber 与 router 挂载 watermill 指标.
	Registry prometheus.Registerer
}

// Client 封装 watermill Publisher、Subscriber 与 Router.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
}

// New 按配置创建消息队列客户端.
func New(ctx context.Context, cfg configs.MQConfig, opts Options) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	l := nlog.Component("mq")
	logger := NewLogger(&l)

	pub, sub, err := factory(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		_ = pub.Close()
		_ = sub.Close()

		return nil, fmt.Errorf("create router: %w", err)
	}

	if opts.Registry != nil {
		// 创建 metrics builder 并绑定 router
		metricsBuilder := metrics.NewPrometheusMetricsBuilder(opts.Registry, configs.AppName, "mq")
		metricsBuilder.AddPrometheusRouterMetrics(router)

		// 装饰 publisher 和 subscriber
		if pub, err = metricsBuilder.DecoratePublisher(pub); err != nil {
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		if sub, err = metricsBuilder.DecorateSubscriber(sub); err != nil {
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	l.Info().Str("type", string(cfg.Type)).Bool("metrics", opts.Registry != nil).Msg("MQ 客户端已初始化")

	return &Client{publisher: pub, subscriber: sub, router: router}, nil
}

// Publisher 返回底层 publisher.
func (c *Client) Publisher() message.Publisher {
	return c.publisher
}

// Publish 便捷发布.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 便捷订阅.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// AddConsumer 在 router 上注册只消费不转发的 handler，需在 Run 之前调用.
// handler 返回 nil 时消息被 Ack，返回错误时 Nack.
func (c *Client) AddConsumer(name, topic string, handler message.NoPublishHandlerFunc) {
	c.router.AddNoPublisherHandler(name, topic, c.subscriber, handler)
}

// Run 运行 router，阻塞直到 ctx 取消或 Close.
func (c *Client) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running 在 router 启动完成后关闭.
func (c *Client) Running() chan struct{} {
	return c.router.Running()
}

// Close 关闭资源.
func (c *Client) Close() error {
	var errs []error

	if c.router != nil {
		// 停止 router，确保所有 handler 停止运行
		errs = append(errs, c.router.Close())
	}

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	return errors.Join(errs...)
}
