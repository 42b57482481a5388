package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/tagdrop/pkg/configs"
)

const (
	limiterIdleTTL    = 10 * time.Minute // 闲置超过该时长的 limiter 被回收
	maxLimiterEntries = 10000            // 超过该数量时触发回收
)

// RateLimitMiddleware 返回一个基于配置的限流中间件.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	burst := max(cfg.Burst, 1)

	// 选择 key 维度
	keyMode := strings.ToLower(strings.TrimSpace(cfg.Key))
	// 全局 limiter
	if keyMode == "global" || keyMode == "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), burst)

		return func(c *gin.Context) {
			if !limiter.Allow() {
				reject(c, cfg.RPS)

				return
			}

			c.Next()
		}
	}

	keys := newLimiterSet(rate.Limit(cfg.RPS), burst)

	return func(c *gin.Context) {
		var key string

		if h, ok := strings.CutPrefix(keyMode, "header:"); ok { // 按请求头，缺失时退回 IP
			key = c.GetHeader(h)
		}

		if key == "" {
			key = clientIP(c)
		}

		if key == "" {
			key = "unknown"
		}

		if !keys.get(key).Allow() {
			reject(c, cfg.RPS)

			return
		}

		c.Next()
	}
}

// UploadRateLimitMiddleware 上传接口按客户端 IP 的额外限流.
// 总开关关闭或 upload.rps 为 0 时直接放行.
func UploadRateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	up := cfg.Upload
	if !cfg.Enabled || up.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keys := newLimiterSet(rate.Limit(up.RPS), max(up.Burst, 1))

	return func(c *gin.Context) {
		if !keys.get(clientIP(c)).Allow() {
			reject(c, up.RPS)

			return
		}

		c.Next()
	}
}

func reject(c *gin.Context, rps float64) {
	retry := max(1, int(1/rps))
	c.Header("Retry-After", strconv.Itoa(retry))
	c.AbortWithStatusJSON(http.StatusTooManyRequests,
		gin.H{"error": "rate limit exceeded"})
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按 key 维护 limiter，数量过多时回收闲置项.
type limiterSet struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{entries: map[string]*limiterEntry{}, limit: limit, burst: burst}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if e, ok := s.entries[key]; ok {
		e.lastSeen = now

		return e.limiter
	}

	if len(s.entries) >= maxLimiterEntries {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(s.entries, k)
			}
		}
	}

	e := &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst), lastSeen: now}
	s.entries[key] = e

	return e.limiter
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		// 进一步尝试从 RemoteAddr
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = c.Request.RemoteAddr
		}
	}

	return ip
}
