package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪 ID，来自当前 span.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// FileRef 标识标签下的一个文件.
type FileRef struct {
	Tag      string `json:"tag"`
	Filename string `json:"filename"`
}

// FileStoredPayload 文件写入完成.
type FileStoredPayload struct {
	File     FileRef `json:"file"`
	Size     int64   `json:"size"`
	MimeType string  `json:"mime_type,omitempty"`
	Checksum string  `json:"checksum,omitempty"`
	Client   string  `json:"client,omitempty"`
	Replaced bool    `json:"replaced,omitempty"` // 覆盖了同名文件
}

// FileDownloadedPayload 文件被下载.
type FileDownloadedPayload struct {
	File    FileRef `json:"file"`
	Client  string  `json:"client,omitempty"`
	Archive bool    `json:"archive,omitempty"` // 通过归档流下载
}

// TagReapedPayload 过期标签被清理.
type TagReapedPayload struct {
	Tag          string    `json:"tag"`
	Files        int64     `json:"files"`
	RegisteredAt time.Time `json:"registered_at"`
	TTL          string    `json:"ttl,omitempty"`
}

// TagID 实现 Tagged.
func (p FileStoredPayload) TagID() string { return p.File.Tag }

// TagID 实现 Tagged.
func (p FileDownloadedPayload) TagID() string { return p.File.Tag }

// TagID 实现 Tagged.
func (p TagReapedPayload) TagID() string { return p.Tag }
