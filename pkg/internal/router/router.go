// Package router 负责组装 gin 引擎：中间件链、路由表与指标端点.
package router

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/tagdrop/pkg/cache"
	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/handle"
	"github.com/yeisme/tagdrop/pkg/metrics"
	"github.com/yeisme/tagdrop/pkg/middleware"
)

// 文件流与 ZIP 流本身已压缩或需要 Range，不经过 gzip.
var gzipExcluded = []string{
	`^/tags/[^/]+/archive$`,
	`^/tags/[^/]+/files/`,
	`^/tags/[^/]+/thumbnails/`,
}

// Options 组装引擎的可选项.
type Options struct {
	// RateLimit 上传接口的额外限流.
	RateLimit configs.RateLimitConfig
	// Cache 非空时缓存公开标签列表.
	Cache    *appcache.Cache
	CacheTTL time.Duration
}

// New 创建引擎并注册全部路由.
func New(cfg *configs.AppConfig, h *handle.Handler, opts Options) *gin.Engine {
	e := gin.New()

	e.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.GinLoggerMiddleware("/health", "/health/ready", cfg.Metrics.Path),
		middleware.CORSMiddleware(cfg.Server),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs(gzipExcluded)),
	)

	if cfg.Metrics.Enabled {
		e.Use(middleware.PrometheusMiddleware())
	}

	if cfg.Tracing.Enabled {
		e.Use(middleware.TracingMiddleware())
	}

	RegisterHealthCheckRoute(e.Group(""), h)
	metrics.Register(cfg.Metrics, e)

	opts.RateLimit = cfg.RateLimit

	api := e.Group("", middleware.RateLimitMiddleware(cfg.RateLimit))
	Register(api, h, opts)

	return e
}

// Register 绑定业务路由：
//
//	POST /                               -> Upload
//	GET  /tags/new                       -> NewTag
//	GET  /tags/public                    -> PublicTags
//	GET  /tags/:tag                      -> List
//	GET  /tags/:tag/archive              -> Archive
//	GET  /tags/:tag/files/:filename      -> Download
//	HEAD /tags/:tag/files/:filename      -> Download
//	GET  /tags/:tag/thumbnails/:filename -> Thumbnail
//	GET  /tags/:tag/admin                -> AdminView
//	POST /tags/:tag/admin                -> AdminUpdate
//	GET  /tags/:tag/log                  -> Log
//	POST /maintenance                    -> Maintenance
func Register(g *gin.RouterGroup, h *handle.Handler, opts Options) {
	g.POST("/", middleware.UploadRateLimitMiddleware(opts.RateLimit), h.Upload)
	g.POST("/maintenance", h.Maintenance)

	tags := g.Group("/tags")
	{
		tags.GET("/new", h.NewTag)

		if opts.Cache != nil {
			cc := middleware.DefaultCacheConfig(opts.Cache)
			if opts.CacheTTL > 0 {
				cc.TTL = opts.CacheTTL
			}

			tags.GET("/public", middleware.CacheMiddleware(cc), h.PublicTags)
		} else {
			tags.GET("/public", h.PublicTags)
		}

		tag := tags.Group("/:tag")
		{
			tag.GET("", h.List)
			tag.GET("/archive", h.Archive)
			tag.GET("/files/:filename", h.Download)
			tag.HEAD("/files/:filename", h.Download)
			tag.GET("/thumbnails/:filename", h.Thumbnail)
			tag.GET("/admin", h.AdminView)
			tag.POST("/admin", h.AdminUpdate)
			tag.GET("/log", h.Log)
		}
	}
}

// RegisterHealthCheckRoute 注册健康检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup, h *handle.Handler) {
	health := g.Group("/health")
	{
		health.GET("", h.Live)
		health.GET("/ready", h.Ready)
	}
}
