package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeisme/tagdrop/pkg/configs"
)

// NATS KV 的键只允许 [-/_=.a-zA-Z0-9]，tagdrop 的 ':' 分隔符替换为 '.'.
var natsKeyReplacer = strings.NewReplacer(":", ".")

// NATSKV 基于 JetStream KV bucket. bucket 的 max age 取 tag_ttl，
// 所有缓存条目都不会比它活得更久，单键 TTL 仍由包装层判断.
type NATSKV struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

func NewNATSKV(_ context.Context, cfg configs.KVConfig) (KVStore, error) {
	nc := cfg.NATS

	opts := []nats.Option{nats.Name(configs.AppName + "-kv")}
	if nc.User != "" {
		opts = append(opts, nats.UserInfo(nc.User, nc.Password))
	}

	conn, err := nats.Connect(nc.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", nc.URL, err)
	}

	bucket, err := openBucket(conn, nc, cfg.TagTTL)
	if err != nil {
		conn.Close()

		return nil, err
	}

	return &NATSKV{conn: conn, kv: bucket}, nil
}

func openBucket(conn *nats.Conn, cfg configs.NATSKVConfig, maxAge time.Duration) (nats.KeyValue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	bucket, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		bucket, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: configs.AppName + " tag cache",
			History:     1,
			TTL:         max(maxAge, 0),
			Replicas:    cfg.Replicas,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", cfg.Bucket, err)
	}

	return bucket, nil
}

func (n *NATSKV) Get(_ context.Context, key string) ([]byte, error) {
	key = natsKeyReplacer.Replace(key)

	entry, err := n.kv.Get(key)
	switch {
	case errors.Is(err, nats.ErrKeyNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("nats kv get %s: %w", key, err)
	}

	value, expired, err := decodeWithTTL(entry.Value(), time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		_ = n.kv.Delete(key)

		return nil, ErrNotFound
	}

	return value, nil
}

func (n *NATSKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeWithTTL(value, ttl, time.Now())
	if err != nil {
		return err
	}

	key = natsKeyReplacer.Replace(key)
	if _, err := n.kv.Put(key, encoded); err != nil {
		return fmt.Errorf("nats kv put %s: %w", key, err)
	}

	return nil
}

func (n *NATSKV) Delete(_ context.Context, key string) error {
	key = natsKeyReplacer.Replace(key)
	if err := n.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("nats kv delete %s: %w", key, err)
	}

	return nil
}

func (n *NATSKV) Exists(ctx context.Context, key string) (bool, error) {
	return existsByGet(ctx, n, key)
}

func (n *NATSKV) Close() error {
	return n.conn.Drain()
}

func init() {
	RegisterKVFactory(KVTypeNATS, NewNATSKV)
}
