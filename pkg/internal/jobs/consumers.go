package jobs

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/queue"
)

// ConsumerRegistry 可注册消费者的消息队列，*mq.Client 满足该接口.
type ConsumerRegistry interface {
	AddConsumer(name, topic string, handler message.NoPublishHandlerFunc)
}

// ThumbnailWarmer 按标签与文件名生成缩略图.
type ThumbnailWarmer interface {
	Ensure(ctx context.Context, tagID, filename string) (string, bool)
}

// RegisterConsumers 按事件开关注册消费者，需在 mq.Client.Run 之前调用.
func RegisterConsumers(reg ConsumerRegistry, warmer ThumbnailWarmer, cfg configs.EventsConfig) {
	if reg == nil || !cfg.Enabled {
		return
	}

	if cfg.FileStored && cfg.WarmThumbnails && warmer != nil {
		reg.AddConsumer(ConsumerWarmThumbnails, queue.TopicFileStored, WarmThumbnails(warmer))
	}

	if cfg.TagReaped {
		reg.AddConsumer(ConsumerReapAudit, queue.TopicTagReaped, ReapAudit())
	}
}

// WarmThumbnails 返回处理 file.stored 事件的 handler.
// 非图片与生成失败都直接确认，下载缩略图时会再次尝试.
func WarmThumbnails(warmer ThumbnailWarmer) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		l := log.Component("jobs").With().Str("consumer", ConsumerWarmThumbnails).Logger()

		env, err := queue.ParseFileStored(msg)
		if err != nil {
			l.Warn().Err(err).Str("uuid", msg.UUID).Msg("drop malformed event")

			return nil
		}

		p := env.Payload
		if !service.Supports(p.MimeType) {
			return nil
		}

		if _, ok := warmer.Ensure(msg.Context(), p.File.Tag, p.File.Filename); !ok {
			l.Debug().Str("tag", p.File.Tag).Str("filename", p.File.Filename).Msg("thumbnail not warmed")
		}

		return nil
	}
}

// ReapAudit 返回把 tag.reaped 事件写入日志的 handler.
func ReapAudit() message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		l := log.Component("jobs").With().Str("consumer", ConsumerReapAudit).Logger()

		env, err := queue.ParseTagReaped(msg)
		if err != nil {
			l.Warn().Err(err).Str("uuid", msg.UUID).Msg("drop malformed event")

			return nil
		}

		l.Info().
			Str("tag", env.Payload.Tag).
			Int64("files", env.Payload.Files).
			Str("ttl", env.Payload.TTL).
			Time("registered_at", env.Payload.RegisteredAt).
			Time("occurred_at", env.Header.OccurredAt).
			Msg("tag reaped")

		return nil
	}
}
