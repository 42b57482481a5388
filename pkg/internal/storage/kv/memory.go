package kv

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/yeisme/tagdrop/pkg/configs"
)

// MemoryKV 进程内实现，单实例部署的默认选择. 过期键在读取时惰性删除.
type MemoryKV struct {
	data sync.Map // string -> []byte（可能带 TTL 包装）
	now  func() time.Time
}

func NewMemoryKV(_ context.Context, _ configs.KVConfig) (KVStore, error) {
	return &MemoryKV{now: time.Now}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	stored, ok := m.data.Load(key)
	if !ok {
		return nil, ErrNotFound
	}

	raw, _ := stored.([]byte)

	value, expired, err := decodeWithTTL(raw, m.now())
	if err != nil {
		return nil, err
	}

	if expired {
		m.data.CompareAndDelete(key, stored)

		return nil, ErrNotFound
	}

	return bytes.Clone(value), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeWithTTL(bytes.Clone(value), ttl, m.now())
	if err != nil {
		return err
	}

	m.data.Store(key, encoded)

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	return existsByGet(ctx, m, key)
}

func (m *MemoryKV) Close() error { return nil }

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
