package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid"
)

// Direction 访问方向.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// AccessLog 只追加的访问日志，仅在标签被清理时整体删除.
type AccessLog struct {
	ID        string    `gorm:"primaryKey;size:26"      json:"id"` // ULID，按时间有序
	Tag       string    `gorm:"size:128;not null;index" json:"tag"`
	Filename  string    `gorm:"size:255"                json:"filename"`
	Client    string    `gorm:"size:255"                json:"client"`
	Direction Direction `gorm:"size:16;not null"        json:"direction"`
	Timestamp time.Time `gorm:"not null;index"          json:"timestamp"`
}

// TableName 指定表名.
func (AccessLog) TableName() string { return "access_logs" }

// NewAccessLog 构造一条访问日志.
func NewAccessLog(tag, filename, client string, dir Direction, now time.Time) *AccessLog {
	return &AccessLog{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Tag:       tag,
		Filename:  filename,
		Client:    client,
		Direction: dir,
		Timestamp: now.UTC(),
	}
}

// All 返回需要迁移的全部模型.
func All() []any {
	return []any{&Tag{}, &File{}, &AccessLog{}}
}
