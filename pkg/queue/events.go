package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/tagdrop/pkg/configs"
	nlog "github.com/yeisme/tagdrop/pkg/log"
)

// Publisher 按事件开关发布领域事件，nil 时所有方法为空操作.
type Publisher struct {
	pub message.Publisher
	cfg configs.EventsConfig
}

// NewPublisher 创建事件发布器，pub 为 nil 或事件总开关关闭时返回 nil.
func NewPublisher(pub message.Publisher, cfg configs.EventsConfig) *Publisher {
	if pub == nil || !cfg.Enabled {
		return nil
	}

	return &Publisher{pub: pub, cfg: cfg}
}

// FileStored 发布 tagdrop.file.stored 事件.
func (p *Publisher) FileStored(ctx context.Context, payload FileStoredPayload) {
	if p == nil || !p.cfg.FileStored {
		return
	}

	publish(ctx, p.pub, TopicFileStored, payload)
}

// FileDownloaded 发布 tagdrop.file.downloaded 事件.
func (p *Publisher) FileDownloaded(ctx context.Context, payload FileDownloadedPayload) {
	if p == nil || !p.cfg.FileDownloaded {
		return
	}

	publish(ctx, p.pub, TopicFileDownloaded, payload)
}

// TagReaped 发布 tagdrop.tag.reaped 事件.
func (p *Publisher) TagReaped(ctx context.Context, payload TagReapedPayload) {
	if p == nil || !p.cfg.TagReaped {
		return
	}

	publish(ctx, p.pub, TopicTagReaped, payload)
}

// publish 发布失败只记录日志.
func publish[T any](ctx context.Context, pub message.Publisher, topic string, payload T) {
	opts := []EventOption{WithProducer(configs.AppName)}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, WithTraceID(sc.TraceID().String()))
	}

	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err == nil {
		err = pub.Publish(topic, msg)
	}

	if err != nil {
		l := nlog.Component("events")
		nlog.Ctx(ctx, &l).Warn().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}

// ParseFileStored 解析并校验主题.
func ParseFileStored(msg *message.Message) (Message[FileStoredPayload], error) {
	return ParseTopic[FileStoredPayload](msg, TopicFileStored)
}

// ParseFileDownloaded 解析并校验主题.
func ParseFileDownloaded(msg *message.Message) (Message[FileDownloadedPayload], error) {
	return ParseTopic[FileDownloadedPayload](msg, TopicFileDownloaded)
}

// ParseTagReaped 解析并校验主题.
func ParseTagReaped(msg *message.Message) (Message[TagReapedPayload], error) {
	return ParseTopic[TagReapedPayload](msg, TopicTagReaped)
}
