// Package model 定义元数据库中的标签、文件记录与访问日志模型.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// TTLClass 标签的过期策略，持久化为 0-5 的整数.
type TTLClass int

const (
	TTLImmediate TTLClass = iota // 注册即过期
	TTLOneWeek
	TTLOneMonth
	TTLSixMonths
	TTLOneYear
	TTLForever
)

// 各过期策略相对注册时间的偏移.
const (
	week         = 7 * 24 * time.Hour
	oneWeekTTL   = week
	oneMonthTTL  = 4 * week
	sixMonthsTTL = 26 * week
	oneYearTTL   = 52 * week
)

var ttlNames = [...]string{"immediate", "oneWeek", "oneMonth", "sixMonths", "oneYear", "forever"}

// TTLClasses 返回全部过期策略，按从短到长排列.
func TTLClasses() []TTLClass {
	return []TTLClass{TTLImmediate, TTLOneWeek, TTLOneMonth, TTLSixMonths, TTLOneYear, TTLForever}
}

// Valid 判断是否为已知策略.
func (c TTLClass) Valid() bool {
	return c >= TTLImmediate && c <= TTLForever
}

func (c TTLClass) String() string {
	if !c.Valid() {
		return "TTLClass(" + strconv.Itoa(int(c)) + ")"
	}

	return ttlNames[c]
}

// ExpiresAt 返回标签的过期时间；forever 永不过期，第二个返回值为 false.
func (c TTLClass) ExpiresAt(registeredAt time.Time) (time.Time, bool) {
	switch c {
	case TTLImmediate:
		return registeredAt, true
	case TTLOneWeek:
		return registeredAt.Add(oneWeekTTL), true
	case TTLOneMonth:
		return registeredAt.Add(oneMonthTTL), true
	case TTLSixMonths:
		return registeredAt.Add(sixMonthsTTL), true
	case TTLOneYear:
		return registeredAt.Add(oneYearTTL), true
	default:
		return time.Time{}, false
	}
}

// ParseTTLClass 解析策略名（如 "oneWeek"）或数字编码（"0"-"5"）.
func ParseTTLClass(s string) (TTLClass, error) {
	for i, name := range ttlNames {
		if s == name {
			return TTLClass(i), nil
		}
	}

	if n, err := strconv.Atoi(s); err == nil && TTLClass(n).Valid() {
		return TTLClass(n), nil
	}

	return 0, fmt.Errorf("unknown ttl class %q", s)
}

// MarshalText 以策略名序列化.
func (c TTLClass) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown ttl class %d", int(c))
	}

	return []byte(c.String()), nil
}

// UnmarshalText 接受策略名或数字编码.
func (c *TTLClass) UnmarshalText(b []byte) error {
	v, err := ParseTTLClass(string(b))
	if err != nil {
		return err
	}

	*c = v

	return nil
}

// Visibility 标签可见性.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Valid 判断是否为已知可见性.
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Permission 标签写权限.
type Permission string

const (
	PermissionReadOnly  Permission = "ro"
	PermissionReadWrite Permission = "rw"
)

// Valid 判断是否为已知权限.
func (p Permission) Valid() bool {
	return p == PermissionReadOnly || p == PermissionReadWrite
}

// Tag 标签（匿名桶）配置.
type Tag struct {
	ID             string     `gorm:"primaryKey;size:128"    json:"id"`
	SecretHash     string     `gorm:"size:128;not null"      json:"-"`
	TTL            TTLClass   `gorm:"not null"               json:"ttl"`
	Visibility     Visibility `gorm:"size:16;not null;index" json:"visibility"`
	Permission     Permission `gorm:"size:8;not null"        json:"permission"`
	PreviewEnabled bool       `gorm:"not null"               json:"preview_enabled"`
	RegisteredAt   time.Time  `gorm:"not null"               json:"registered_at"`
}

// TableName 指定表名.
func (Tag) TableName() string { return "tags" }

// NewTag 返回带默认配置的新标签：六个月、私有、可写、开启预览.
func NewTag(id, secretHash string, now time.Time) *Tag {
	return &Tag{
		ID:             id,
		SecretHash:     secretHash,
		TTL:            TTLSixMonths,
		Visibility:     VisibilityPrivate,
		Permission:     PermissionReadWrite,
		PreviewEnabled: true,
		RegisteredAt:   now.UTC().Truncate(time.Second),
	}
}

// ExpiresAt 返回标签过期时间，forever 返回 false.
func (t *Tag) ExpiresAt() (time.Time, bool) {
	return t.TTL.ExpiresAt(t.RegisteredAt)
}

// Expired 判断标签在 now 时刻是否已过期.
func (t *Tag) Expired(now time.Time) bool {
	at, ok := t.ExpiresAt()
	if !ok {
		return false
	}

	return !now.Before(at)
}

// Writable 判断标签是否接受上传.
func (t *Tag) Writable() bool {
	return t.Permission != PermissionReadOnly
}
