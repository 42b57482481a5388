// Package handle 提供 HTTP 请求处理器，把请求转换为 service 调用并把错误映射为状态码.
package handle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	"github.com/yeisme/tagdrop/pkg/log"
)

// 请求头.
const (
	HeaderTag              = "X-Tag"
	HeaderFilename         = "X-Filename"
	HeaderSecret           = "X-Secret"
	HeaderContentMD5       = "Content-MD5"
	HeaderMaintenanceToken = "X-Maintenance-Token"
)

// Pinger 就绪检查依赖.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler 持有全部服务，方法即 gin 处理器.
type Handler struct {
	svc      *service.Services
	security configs.SecurityConfig
	ready    Pinger
	logger   zerolog.Logger
}

// New 创建处理器集合. ready 为 nil 时就绪检查总是成功.
func New(svc *service.Services, security configs.SecurityConfig, ready Pinger) *Handler {
	return &Handler{
		svc:      svc,
		security: security,
		ready:    ready,
		logger:   log.Component("http"),
	}
}

// status 把错误映射为状态码.
func status(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrChecksumMismatch):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrRepositoryUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrSweepRunning):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail 写出错误响应. 非法输入与鉴权失败先等待 security.failure_penalty.
func (h *Handler) fail(c *gin.Context, err error) {
	code := status(err)

	l := h.logger.With().Str("path", c.FullPath()).Int("status", code).Logger()
	ctx := c.Request.Context()

	if code >= http.StatusInternalServerError {
		log.Ctx(ctx, &l).Error().Err(err).Msg("request failed")
		c.AbortWithStatusJSON(code, gin.H{"error": http.StatusText(code)})

		return
	}

	log.Ctx(ctx, &l).Debug().Err(err).Msg("request rejected")

	if code == http.StatusBadRequest || code == http.StatusForbidden {
		h.penalize(ctx)
	}

	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// unauthorized 缺少密钥时的响应.
func (h *Handler) unauthorized(c *gin.Context) {
	h.penalize(c.Request.Context())
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderSecret})
}

func (h *Handler) penalize(ctx context.Context) {
	if h.security.FailurePenalty <= 0 {
		return
	}

	t := time.NewTimer(h.security.FailurePenalty)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// client 访问日志中的来源标识.
func client(c *gin.Context) string {
	return c.ClientIP()
}
