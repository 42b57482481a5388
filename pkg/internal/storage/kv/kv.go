// Package kv 键值存储抽象，tagdrop 用它缓存标签配置与公开接口的响应.
package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/yeisme/tagdrop/pkg/configs"
)

// ErrNotFound 键不存在或已过期.
var ErrNotFound = errors.New("kv: key not found")

// KVStore 键值存储. 值按字节存取，ttl<=0 表示不过期.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除不存在的键不报错.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

type KVType string

const (
	KVTypeMemory     KVType = "memory"
	KVTypeRedis      KVType = "redis"
	KVTypeNATS       KVType = "nats"
	KVTypeGroupcache KVType = "groupcache"
)

type KVFactory func(ctx context.Context, cfg configs.KVConfig) (KVStore, error)

var kvFactories = make(map[KVType]KVFactory)

// RegisterKVFactory 由各实现的 init 调用.
func RegisterKVFactory(kvType KVType, factory KVFactory) {
	kvFactories[kvType] = factory
}

// GetRegisteredKVTypes 返回当前构建可用的类型，按名称排序.
func GetRegisteredKVTypes() []KVType {
	types := make([]KVType, 0, len(kvFactories))
	for t := range kvFactories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// New 按 cfg.Type 创建 KVStore.
func New(ctx context.Context, cfg configs.KVConfig) (KVStore, error) {
	factory, ok := kvFactories[KVType(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("unsupported kv type: %s", cfg.Type)
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s kv: %w", cfg.Type, err)
	}

	return store, nil
}

// existsByGet 供没有原生 EXISTS 的实现复用，过期的键视为不存在.
func existsByGet(ctx context.Context, s KVStore, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
