package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/tagdrop/pkg/cache"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	defaultCacheTTL     = 10 * time.Second
	cacheStoreTimeout   = 2 * time.Second
	headerCacheBypass   = "X-Cache-Bypass"
)

// CacheConfig 响应缓存配置.
type CacheConfig struct {
	Cache        *appcache.Cache
	TTL          time.Duration
	BypassHeader string // 请求带此头时不读也不写缓存
	MaxBodyBytes int    // 超过则不缓存，0 不限制
}

func DefaultCacheConfig(c *appcache.Cache) CacheConfig {
	return CacheConfig{
		Cache:        c,
		TTL:          defaultCacheTTL,
		BypassHeader: headerCacheBypass,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

type cachedResponse struct {
	Status      int    `json:"s"`
	ContentType string `json:"ct,omitempty"`
	Body        []byte `json:"b,omitempty"`
	ETag        string `json:"e"`
	StoredAt    int64  `json:"t"` // unix 秒
}

// CacheMiddleware 缓存 GET/HEAD 的 200 响应，支持 If-None-Match.
// 只能挂在不含私密数据的接口上（公开标签列表），缓存故障时直接回源.
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil {
		panic("CacheMiddleware: nil cache")
	}

	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}

	maxAge := "public, max-age=" + strconv.Itoa(int(cfg.TTL.Seconds()))

	return func(c *gin.Context) {
		m := c.Request.Method
		if (m != http.MethodGet && m != http.MethodHead) ||
			(cfg.BypassHeader != "" && c.GetHeader(cfg.BypassHeader) != "") {
			c.Next()

			return
		}

		key := responseKey(c, cfg.Cache)

		if resp, err := appcache.Get[cachedResponse](c.Request.Context(), cfg.Cache, key); err == nil {
			replay(c, resp, maxAge)

			return
		}

		tee := &teeWriter{ResponseWriter: c.Writer, limit: cfg.MaxBodyBytes}
		c.Writer = tee
		c.Next()

		if c.Writer.Status() != http.StatusOK || tee.overflow {
			return
		}

		body := bytes.Clone(tee.buf.Bytes())
		resp := cachedResponse{
			Status:      http.StatusOK,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        body,
			ETag:        strconv.Quote(strconv.FormatUint(xxhash.Sum64(body), 16)),
			StoredAt:    time.Now().Unix(),
		}

		// 请求结束后 ctx 会被取消
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), cacheStoreTimeout)
		go func() {
			defer cancel()

			_ = appcache.Set(ctx, cfg.Cache, key, resp, cfg.TTL)
		}()
	}
}

// responseKey 路由模板加规范化后的 query（Encode 按键排序）.
func responseKey(c *gin.Context, cache *appcache.Cache) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}

	sum := xxhash.Sum64String(route + "?" + c.Request.URL.Query().Encode())

	return cache.Key("resp", strconv.FormatUint(sum, 16))
}

func replay(c *gin.Context, resp cachedResponse, cacheControl string) {
	h := c.Writer.Header()
	h.Set("ETag", resp.ETag)
	h.Set("Cache-Control", cacheControl)
	h.Set("Age", strconv.FormatInt(max(time.Now().Unix()-resp.StoredAt, 0), 10))
	h.Set("X-Cache", "HIT")

	if match := c.GetHeader("If-None-Match"); match != "" && match == resp.ETag {
		c.AbortWithStatus(http.StatusNotModified)

		return
	}

	if resp.ContentType != "" {
		h.Set("Content-Type", resp.ContentType)
	}

	c.Status(resp.Status)

	if c.Request.Method != http.MethodHead {
		_, _ = c.Writer.Write(resp.Body)
	}

	c.Abort()
}

// teeWriter 复制响应体，超过 limit 后停止复制并标记 overflow.
type teeWriter struct {
	gin.ResponseWriter

	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}

	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
