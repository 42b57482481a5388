package model

import (
	"strings"
	"time"
)

// File 标签下的一条文件记录，(Tag, Filename) 唯一，重复上传时整体覆盖.
type File struct {
	Tag        string     `gorm:"primaryKey;size:128" json:"tag"`
	Filename   string     `gorm:"primaryKey;size:255" json:"filename"`
	Size       int64      `gorm:"not null"            json:"size"`
	MimeType   string     `gorm:"size:255"            json:"mime_type"`
	Checksum   string     `gorm:"size:64"             json:"checksum"` // 内容 MD5（十六进制）
	CapturedAt *time.Time `gorm:"index"               json:"captured_at,omitempty"`
	UploadedAt time.Time  `gorm:"not null"            json:"uploaded_at"`
	Downloads  int64      `gorm:"not null"            json:"downloads"`
}

// TableName 指定表名.
func (File) TableName() string { return "files" }

// IsImage 判断是否为图片.
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// Bandwidth 返回累计下载流量（下载次数 × 文件大小）.
func (f *File) Bandwidth() int64 {
	return f.Downloads * f.Size
}
