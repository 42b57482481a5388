package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/tagdrop/pkg/cache"
	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/storage/kv"
	"github.com/yeisme/tagdrop/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(e *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func TestRequestID(t *testing.T) {
	e := gin.New()
	e.Use(middleware.RequestIDMiddleware())
	e.GET("/", func(c *gin.Context) { c.String(http.StatusOK, middleware.RequestID(c)) })

	w := do(e, http.MethodGet, "/", nil)
	id := w.Header().Get(middleware.HeaderRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())

	w = do(e, http.MethodGet, "/", http.Header{middleware.HeaderRequestID: {"abc"}})
	assert.Equal(t, "abc", w.Header().Get(middleware.HeaderRequestID))
}

func TestRateLimitPerIP(t *testing.T) {
	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2, Key: "ip"}))
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", nil).Code)

	w := do(e, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitDisabled(t *testing.T) {
	e := gin.New()
	e.Use(middleware.RateLimitMiddleware(configs.RateLimitConfig{Enabled: false}))
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 10 {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", nil).Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	cfg := configs.RateLimitConfig{Enabled: true, Upload: configs.UploadRateLimit{RPS: 0.001, Burst: 1}}

	e := gin.New()
	e.POST("/", middleware.UploadRateLimitMiddleware(cfg), func(c *gin.Context) { c.Status(http.StatusCreated) })
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/", nil).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", nil).Code)

	cfg.Upload.RPS = 0
	e = gin.New()
	e.POST("/", middleware.UploadRateLimitMiddleware(cfg), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for range 5 {
		assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/", nil).Code)
	}
}

func TestCacheMiddleware(t *testing.T) {
	store, err := kv.NewMemoryKV(context.Background(), configs.KVConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var hits atomic.Int32

	e := gin.New()
	e.Use(middleware.CacheMiddleware(middleware.DefaultCacheConfig(cache.NewCache(store, "test:"))))
	e.GET("/public", func(c *gin.Context) {
		hits.Add(1)
		c.JSON(http.StatusOK, gin.H{"tags": []string{"abcdefghij"}})
	})

	first := do(e, http.MethodGet, "/public", nil)
	require.Equal(t, http.StatusOK, first.Code)

	var second *httptest.ResponseRecorder

	require.Eventually(t, func() bool {
		second = do(e, http.MethodGet, "/public", nil)

		return second.Header().Get("X-Cache") == "HIT"
	}, 2*time.Second, 10*time.Millisecond)

	assert.JSONEq(t, first.Body.String(), second.Body.String())

	etag := second.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w := do(e, http.MethodGet, "/public", http.Header{"If-None-Match": {etag}})
	assert.Equal(t, http.StatusNotModified, w.Code)

	before := hits.Load()
	w = do(e, http.MethodGet, "/public", http.Header{"X-Cache-Bypass": {"1"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, before+1, hits.Load())
}

func TestPrometheusAndLogger(t *testing.T) {
	e := gin.New()
	e.Use(middleware.RequestIDMiddleware(), middleware.GinLoggerMiddleware("/health"), middleware.PrometheusMiddleware(),
		middleware.TracingMiddleware())
	e.GET("/tags/:tag", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/tags/abcdefghij", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/nowhere", nil).Code)
}

func TestCORSOrigins(t *testing.T) {
	preflight := func(origins []string, origin string) *httptest.ResponseRecorder {
		e := gin.New()
		e.Use(middleware.CORSMiddleware(configs.ServerConfig{CORSOrigins: origins}))
		e.POST("/", func(c *gin.Context) { c.Status(http.StatusCreated) })

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-Tag")

		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)

		return w
	}

	w := preflight(nil, "https://anywhere.test")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight([]string{"https://drop.example.com"}, "https://drop.example.com")
	assert.Equal(t, "https://drop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight([]string{"https://drop.example.com"}, "https://evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
