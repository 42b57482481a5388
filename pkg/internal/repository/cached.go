package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yeisme/tagdrop/pkg/cache"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/storage/kv"
	nlog "github.com/yeisme/tagdrop/pkg/log"
)

// cachedTag 是标签的缓存形式；model.Tag 的 JSON 不包含密钥哈希.
type cachedTag struct {
	ID             string           `json:"id"`
	SecretHash     string           `json:"secret_hash"`
	TTL            model.TTLClass   `json:"ttl"`
	Visibility     model.Visibility `json:"visibility"`
	Permission     model.Permission `json:"permission"`
	PreviewEnabled bool             `json:"preview_enabled"`
	RegisteredAt   time.Time        `json:"registered_at"`
}

func toCached(t *model.Tag) cachedTag {
	return cachedTag{
		ID:             t.ID,
		SecretHash:     t.SecretHash,
		TTL:            t.TTL,
		Visibility:     t.Visibility,
		Permission:     t.Permission,
		PreviewEnabled: t.PreviewEnabled,
		RegisteredAt:   t.RegisteredAt,
	}
}

func (c cachedTag) tag() *model.Tag {
	return &model.Tag{
		ID:             c.ID,
		SecretHash:     c.SecretHash,
		TTL:            c.TTL,
		Visibility:     c.Visibility,
		Permission:     c.Permission,
		PreviewEnabled: c.PreviewEnabled,
		RegisteredAt:   c.RegisteredAt,
	}
}

// CachedTags 缓存标签配置（每次上传、下载与缩略图请求都会读取），写操作后失效.
// 其余方法直接透传.
type CachedTags struct {
	Repository

	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedTags 包装仓库，store 为 nil 或 ttl<=0 时原样返回 next.
func NewCachedTags(next Repository, store kv.KVStore, prefix string, ttl time.Duration) Repository {
	if store == nil || ttl <= 0 {
		return next
	}

	return &CachedTags{Repository: next, cache: cache.NewCache(store, prefix), ttl: ttl}
}

func (c *CachedTags) key(id string) string {
	return c.cache.Key("tag", id)
}

func (c *CachedTags) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	ct, err := cache.GetOrSet(ctx, c.cache, c.key(id), func() (cachedTag, error) {
		t, err := c.Repository.GetTag(ctx, id)
		if err != nil {
			return cachedTag{}, err
		}

		return toCached(t), nil
	}, c.ttl)
	if err != nil {
		return nil, err
	}

	return ct.tag(), nil
}

func (c *CachedTags) UpsertTag(ctx context.Context, tag *model.Tag) error {
	defer c.invalidate(ctx, tag.ID)

	return c.Repository.UpsertTag(ctx, tag)
}

func (c *CachedTags) RegisterTag(ctx context.Context, tag *model.Tag) (bool, error) {
	defer c.invalidate(ctx, tag.ID)

	return c.Repository.RegisterTag(ctx, tag)
}

func (c *CachedTags) DeleteTag(ctx context.Context, id string) error {
	defer c.invalidate(ctx, id)

	return c.Repository.DeleteTag(ctx, id)
}

func (c *CachedTags) invalidate(ctx context.Context, id string) {
	if err := c.cache.Invalidate(ctx, c.key(id)); err != nil && !errors.Is(err, kv.ErrNotFound) {
		l := nlog.Component("repository")
		l.Warn().Err(err).Str("tag", id).Msg("failed to invalidate cached tag")
	}
}
