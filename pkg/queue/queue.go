// Package queue 定义文件投放过程中的领域事件，以及事件的编解码与发布.
//
// 概览
//   - 采用发布/订阅模型，解耦上传、缩略图预热与清理通知
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - 默认 JSON 编解码（bytedance/sonic），跨语言易解析
//
// 消息信封（Envelope）JSON 结构
//
//	{
//	  "header": {
//	    "topic": "tagdrop.file.stored",
//	    "trace_id": "optional-trace-id",
//	    "producer": "tagdrop",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { ... 取决于具体主题 ... }
//	}
//
// 发布/订阅示例
//
//	pub := queue.NewPublisher(client.Publisher(), cfg.Events)
//	pub.FileStored(ctx, queue.FileStoredPayload{File: queue.FileRef{Tag: "abc", Filename: "a.jpg"}})
//
//	client.AddConsumer("warm", queue.TopicFileStored, func(m *message.Message) error {
//	    env, err := queue.ParseFileStored(m)
//	    ...
//	})
//
// 注意事项
//  1. occurred_at 为 UTC，RFC3339 格式
//  2. version 便于后向兼容，建议消费者忽略未知字段
//  3. 事件是尽力而为的通知，发布失败只记录日志，不影响上传与清理结果
//  4. 负载带标签时 metadata 中附带 tag，消费者无需解码即可按标签过滤
package queue

import (
	"errors"
	"fmt"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

// PayloadVersionV1 当前负载版本.
const PayloadVersionV1 = "v1"

// watermill 消息的 metadata 键.
const (
	MetaTopic      = "topic"
	MetaTag        = "tag"
	MetaTraceID    = "trace_id"
	MetaProducer   = "producer"
	MetaOccurredAt = "occurred_at"
	MetaVersion    = "version"
)

// ErrUnexpectedTopic 消息头的主题与期望不符.
var ErrUnexpectedTopic = errors.New("unexpected event topic")

// EventOption 修改事件头.
type EventOption func(*EventHeader)

// Tagged 属于某个标签的负载.
type Tagged interface {
	TagID() string
}

// NewEventHeader 创建事件头，发生时间默认为当前 UTC 时间.
func NewEventHeader(topic string, opts ...EventOption) EventHeader {
	hdr := EventHeader{Topic: topic, OccurredAt: time.Now().UTC(), Version: PayloadVersionV1}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) EventOption { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) EventOption { return func(h *EventHeader) { h.Producer = p } }

// WithOccurredAt 覆盖发生时间.
func WithOccurredAt(t time.Time) EventOption { return func(h *EventHeader) { h.OccurredAt = t.UTC() } }

// Encode 将消息封装为 JSON.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 解码消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造 watermill 消息. 事件头中的非空字段同时写入 metadata.
func NewWatermillMessage[T any](topic string, payload T, opts ...EventOption) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)

	data, err := Encode(Message[T]{Header: header, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)

	meta := map[string]string{
		MetaTopic:      topic,
		MetaTraceID:    header.TraceID,
		MetaProducer:   header.Producer,
		MetaOccurredAt: header.OccurredAt.Format(time.RFC3339Nano),
		MetaVersion:    header.Version,
	}

	if t, ok := any(payload).(Tagged); ok {
		meta[MetaTag] = t.TagID()
	}

	for k, v := range meta {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}

// ParseTopic 解出负载并校验主题，防止消费者挂错主题时静默解析出零值.
func ParseTopic[T any](msg *message.Message, topic string) (Message[T], error) {
	env, err := ParseWatermillMessage[T](msg)
	if err != nil {
		return env, fmt.Errorf("decode %s: %w", topic, err)
	}

	if env.Header.Topic != topic {
		return env, fmt.Errorf("%w: want %s, got %q", ErrUnexpectedTopic, topic, env.Header.Topic)
	}

	return env, nil
}
