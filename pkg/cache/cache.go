// Package cache 在 kv.KVStore 之上提供带命名空间的类型化缓存.
//
// 值以 sonic 编码为 JSON 存储. 未命中返回 kv.ErrNotFound. GetOrSet 对同一个键的并发未命中
// 只调用一次 getter（热门标签被大量并发下载时只回源一次），写缓存失败不影响返回值.
//
//	c := cache.NewCache(store, "tagdrop:")
//	tag, err := cache.GetOrSet(ctx, c, c.Key("tag", id), func() (Tag, error) {
//	    return repo.GetTag(ctx, id)
//	}, 30*time.Second)
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/tagdrop/pkg/internal/storage/kv"
)

type Cache struct {
	store  kv.KVStore
	prefix string
	flight singleflight.Group
}

// NewCache prefix 为键命名空间，例如 "tagdrop:".
func NewCache(store kv.KVStore, prefix string) *Cache {
	return &Cache{store: store, prefix: prefix}
}

// Key 以 ':' 连接各段并加上命名空间前缀.
func (c *Cache) Key(parts ...string) string {
	return c.prefix + strings.Join(parts, ":")
}

func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var v T

	data, err := c.store.Get(ctx, key)
	if err != nil {
		return v, err
	}

	if err := sonic.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode cached %s: %w", key, err)
	}

	return v, nil
}

func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}

	return c.store.Set(ctx, key, data, ttl)
}

// Invalidate 删除若干键，返回第一个错误.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			return err
		}
	}

	return nil
}

// GetOrSet 命中直接返回；未命中时调用 getter 并回填.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if v, err := Get[T](ctx, c, key); err == nil {
		return v, nil
	}

	res, err, _ := c.flight.Do(key, func() (any, error) {
		v, err := getter()
		if err != nil {
			return nil, err
		}

		_ = Set(ctx, c, key, v, ttl)

		return v, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return res.(T), nil
}
