package kv_test

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"os"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/storage/kv"
)

var groupSeq atomic.Uint64

// newStore 创建指定类型的 KV，groupcache 组名按序号区分.
func newStore(tb testing.TB, kvType kv.KVType) kv.KVStore {
	tb.Helper()

	cfg := configs.Default().KV
	cfg.Type = string(kvType)
	cfg.Groupcache.Name = fmt.Sprintf("test-groupcache-%d", groupSeq.Add(1))
	cfg.Groupcache.CacheBytes = 8 * 1024 * 1024

	store, err := kv.New(context.Background(), cfg)
	require.NoError(tb, err)

	tb.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStores(t *testing.T) {
	for _, kvType := range []kv.KVType{kv.KVTypeMemory, kv.KVTypeGroupcache} {
		t.Run(string(kvType), func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, kvType)

			_, err := store.Get(ctx, "tagdrop:tag:missing")
			require.ErrorIs(t, err, kv.ErrNotFound)

			require.NoError(t, store.Set(ctx, "tagdrop:tag:a", []byte("one"), 0))

			got, err := store.Get(ctx, "tagdrop:tag:a")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			// 覆盖写入后读取新值
			require.NoError(t, store.Set(ctx, "tagdrop:tag:a", []byte("two"), 0))

			got, err = store.Get(ctx, "tagdrop:tag:a")
			require.NoError(t, err)
			assert.Equal(t, []byte("two"), got)

			ok, err := store.Exists(ctx, "tagdrop:tag:a")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, store.Delete(ctx, "tagdrop:tag:a"))

			_, err = store.Get(ctx, "tagdrop:tag:a")
			require.ErrorIs(t, err, kv.ErrNotFound)

			ok, err = store.Exists(ctx, "tagdrop:tag:a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSetAfterDeleteReturnsNewValue(t *testing.T) {
	for _, kvType := range []kv.KVType{kv.KVTypeMemory, kv.KVTypeGroupcache} {
		t.Run(string(kvType), func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, kvType)

			require.NoError(t, store.Set(ctx, "tagdrop:tag:p", []byte("readWrite"), 0))

			got, err := store.Get(ctx, "tagdrop:tag:p")
			require.NoError(t, err)
			assert.Equal(t, []byte("readWrite"), got)

			require.NoError(t, store.Delete(ctx, "tagdrop:tag:p"))
			require.NoError(t, store.Set(ctx, "tagdrop:tag:p", []byte("readOnly"), 0))

			for range 2 {
				got, err = store.Get(ctx, "tagdrop:tag:p")
				require.NoError(t, err)
				assert.Equal(t, []byte("readOnly"), got)
			}
		})
	}
}

func TestSetAfterExpiryReturnsNewValue(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, kv.KVTypeGroupcache)

	require.NoError(t, store.Set(ctx, "tagdrop:tag:e", []byte("old"), 10*time.Millisecond))

	got, err := store.Get(ctx, "tagdrop:tag:e")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)

	time.Sleep(30 * time.Millisecond)

	_, err = store.Get(ctx, "tagdrop:tag:e")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set(ctx, "tagdrop:tag:e", []byte("new"), 0))

	got, err = store.Get(ctx, "tagdrop:tag:e")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestStoresHonorTTL(t *testing.T) {
	for _, kvType := range []kv.KVType{kv.KVTypeMemory, kv.KVTypeGroupcache} {
		t.Run(string(kvType), func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t, kvType)

			require.NoError(t, store.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
			require.NoError(t, store.Set(ctx, "long", []byte("v"), time.Hour))

			time.Sleep(60 * time.Millisecond)

			_, err := store.Get(ctx, "short")
			require.ErrorIs(t, err, kv.ErrNotFound)

			got, err := store.Get(ctx, "long")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, kv.KVTypeMemory)

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, 0))

	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestNewUnsupportedType(t *testing.T) {
	cfg := configs.Default().KV
	cfg.Type = "etcd"

	_, err := kv.New(context.Background(), cfg)
	require.Error(t, err)
}

func TestRegisteredTypes(t *testing.T) {
	types := kv.GetRegisteredKVTypes()
	assert.Contains(t, types, kv.KVTypeMemory)
	assert.Contains(t, types, kv.KVTypeGroupcache)
	assert.Contains(t, types, kv.KVTypeNATS)
	assert.True(t, slices.IsSorted(types))
}

func TestExpiredKeyDoesNotExist(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, kv.KVTypeMemory)

	require.NoError(t, store.Set(ctx, "gone", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	ok, err := store.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func BenchmarkMemoryKV(b *testing.B) {
	store := newStore(b, kv.KVTypeMemory)

	benchKV(b, "memory", store)
	benchKVParallel(b, "memory", store)
}

func BenchmarkGroupcacheKV(b *testing.B) {
	store := newStore(b, kv.KVTypeGroupcache)

	benchKV(b, "groupcache", store)
	benchKVParallel(b, "groupcache", store)
}

// Optional: enable with ENABLE_REDIS_BENCH=1 and REDIS_ADDR set (default 127.0.0.1:6379).
func BenchmarkRedisKV(b *testing.B) {
	if os.Getenv("ENABLE_REDIS_BENCH") == "" {
		b.Skip("set ENABLE_REDIS_BENCH=1 to enable")
	}

	cfg := configs.Default().KV
	cfg.Type = string(kv.KVTypeRedis)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	store, err := kv.New(context.Background(), cfg)
	if err != nil {
		b.Skipf("redis not available: %v", err)
	}

	benchKV(b, "redis", store)
	benchKVParallel(b, "redis", store)
	_ = store.Close()
}

// Optional: enable with ENABLE_NATS_BENCH=1 and NATS_URL set (default nats://127.0.0.1:4222)
func BenchmarkNATSKV(b *testing.B) {
	if os.Getenv("ENABLE_NATS_BENCH") == "" {
		b.Skip("set ENABLE_NATS_BENCH=1 to enable")
	}

	cfg := configs.Default().KV
	cfg.Type = string(kv.KVTypeNATS)
	cfg.NATS.Bucket = "bench-kv"

	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATS.URL = url
	}

	store, err := kv.New(context.Background(), cfg)
	if err != nil {
		b.Skipf("nats not available: %v", err)
	}

	benchKV(b, "nats", store)
	benchKVParallel(b, "nats", store)
	_ = store.Close()
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = crand.Read(b)

	return b
}

// benchKV 执行基本的 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	sizes := []int{32, 1024, 64 * 1024}
	ttls := []time.Duration{0, 5 * time.Second}

	for _, size := range sizes {
		payload := randBytes(size)
		for _, ttl := range ttls {
			b.Run(fmt.Sprintf("%s/size=%d/ttl=%s", name, size, ttl), func(b *testing.B) {
				b.ReportAllocs()

				for i := 0; b.Loop(); i++ {
					key := fmt.Sprintf("bench-%s-%d", name, i)
					if err := store.Set(ctx, key, payload, ttl); err != nil {
						b.Fatalf("set failed: %v", err)
					}

					if _, err := store.Get(ctx, key); err != nil {
						b.Fatalf("get failed: %v", err)
					}

					if err := store.Delete(ctx, key); err != nil {
						b.Fatalf("delete failed: %v", err)
					}
				}
			})
		}
	}
}

// benchKVParallel 执行并行的 Set/Get/Delete 基准测试.
func benchKVParallel(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	payload := randBytes(1024)

	var ctr uint64

	b.Run(fmt.Sprintf("%s/parallel", name), func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				i := atomic.AddUint64(&ctr, 1)

				key := fmt.Sprintf("bench-%s-p-%d", name, i)
				if err := store.Set(ctx, key, payload, 0); err != nil {
					b.Errorf("set failed: %v", err)

					return
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Errorf("get failed: %v", err)

					return
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Errorf("delete failed: %v", err)

					return
				}
			}
		})
	})
}
