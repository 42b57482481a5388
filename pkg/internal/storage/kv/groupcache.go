package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/tagdrop/pkg/configs"
)

// GroupcacheKV 基于 Groupcache 的 KV 实现.
//
// groupcache 的条目一旦写入便不可修改或淘汰，因此每次 Set 都会递增键的版本号，
// 读取时按 "key#v<版本>" 访问，旧版本的缓存条目自然失效.
// 版本号只增不减：Delete 与过期只移除数据，保留计数，之后的 Set 不会复用旧版本.
type GroupcacheKV struct {
	cache    *groupcache.Group    // Groupcache 缓存组
	peers    *groupcache.HTTPPool // 对等节点池
	data     map[string][]byte    // 本地存储数据，键为带版本的键
	versions map[string]uint64    // 原始键 -> 最近一次 Set 的版本，删除后保留
	mu       sync.RWMutex         // 保护 data 与 versions
	now      func() time.Time
}

// groupcacheGetter 实现 groupcache.Getter 接口.
type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(_ context.Context, key string, dest groupcache.Sink) error {
	g.kv.mu.RLock()
	value, exists := g.kv.data[key]
	g.kv.mu.RUnlock()

	if !exists {
		return ErrNotFound
	}

	if err := dest.SetBytes(value); err != nil {
		return fmt.Errorf("failed to set bytes to sink: %w", err)
	}

	return nil
}

// NewGroupcacheKV 创建 Groupcache KV 实例.
// 同一进程内组名必须唯一.
func NewGroupcacheKV(_ context.Context, cfg configs.KVConfig) (KVStore, error) {
	gc := cfg.Groupcache
	if gc.Name == "" {
		return nil, fmt.Errorf("groupcache name is required")
	}

	if groupcache.GetGroup(gc.Name) != nil {
		return nil, fmt.Errorf("groupcache group %q already exists", gc.Name)
	}

	kv := &GroupcacheKV{
		data:     make(map[string][]byte),
		versions: make(map[string]uint64),
		now:      time.Now,
	}

	// 创建缓存组
	kv.cache = groupcache.NewGroup(gc.Name, gc.CacheBytes, &groupcacheGetter{kv: kv})

	// 如果有对等节点，设置 HTTP 池
	if len(gc.Peers) > 0 {
		kv.peers = groupcache.NewHTTPPoolOpts(gc.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gc.Peers...)
	}

	return kv, nil
}

func versioned(key string, version uint64) string {
	return key + "#v" + strconv.FormatUint(version, 10)
}

// Get 获取键的值.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	g.mu.RLock()
	version, ok := g.versions[key]
	_, live := g.data[versioned(key, version)]
	g.mu.RUnlock()

	// 已删除的版本可能仍留在 groupcache 的本地缓存里，不能再访问
	if !ok || !live {
		return nil, ErrNotFound
	}

	var raw []byte

	if err := g.cache.Get(ctx, versioned(key, version), groupcache.AllocatingByteSliceSink(&raw)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	data, expired, err := decodeWithTTL(raw, g.now())
	if err != nil {
		return nil, err
	}

	if expired {
		g.expire(key, version)

		return nil, ErrNotFound
	}

	return bytes.Clone(data), nil
}

// expire 仅在版本未变化时移除过期键.
func (g *GroupcacheKV) expire(key string, version uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.versions[key] != version {
		return
	}

	delete(g.data, versioned(key, version))
}

// Set 设置键的值.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeWithTTL(bytes.Clone(value), ttl, g.now())
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	old := g.versions[key]
	delete(g.data, versioned(key, old))

	next := old + 1
	g.versions[key] = next
	g.data[versioned(key, next)] = encoded

	return nil
}

// Delete 删除键.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if version, ok := g.versions[key]; ok {
		delete(g.data, versioned(key, version))
	}

	return nil
}

func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	return existsByGet(ctx, g, key)
}

// Close 无操作，groupcache 组无法注销.
func (g *GroupcacheKV) Close() error { return nil }

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
