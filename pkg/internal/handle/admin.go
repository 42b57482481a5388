package handle

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// AdminView 返回标签配置与各过期策略对应的过期时间.
//
//	GET /tags/:tag/admin
//	X-Secret: 标签密钥
func (h *Handler) AdminView(c *gin.Context) {
	secret := c.GetHeader(HeaderSecret)
	if secret == "" {
		h.unauthorized(c)

		return
	}

	view, err := h.svc.Admin.View(c.Request.Context(), c.Param("tag"), secret)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, view)
}

// AdminUpdate 修改标签配置，整体校验通过后才写入.
//
//	POST /tags/:tag/admin
//	X-Secret: 标签密钥
//	{"ttl":"oneWeek","visibility":"public","permission":"ro","preview_enabled":false}
func (h *Handler) AdminUpdate(c *gin.Context) {
	secret := c.GetHeader(HeaderSecret)
	if secret == "" {
		h.unauthorized(c)

		return
	}

	var upd service.TagUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.fail(c, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err))

		return
	}

	view, err := h.svc.Admin.Update(c.Request.Context(), c.Param("tag"), secret, upd)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, view)
}

// Log 返回访问日志，最新在前.
//
//	GET /tags/:tag/log?limit=N
//	X-Secret: 标签密钥
func (h *Handler) Log(c *gin.Context) {
	secret := c.GetHeader(HeaderSecret)
	if secret == "" {
		h.unauthorized(c)

		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLogLimit)))
	if err != nil || limit <= 0 {
		limit = defaultLogLimit
	}

	entries, err := h.svc.Admin.Log(c.Request.Context(), c.Param("tag"), secret, min(limit, maxLogLimit))
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"tag": c.Param("tag"), "entries": entries})
}

// Maintenance 立即执行一次过期清理.
//
//	POST /maintenance
//	X-Maintenance-Token: security.maintenance_token 非空时必填
func (h *Handler) Maintenance(c *gin.Context) {
	if want := h.security.MaintenanceToken; want != "" {
		got := c.GetHeader(HeaderMaintenanceToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			h.fail(c, fmt.Errorf("%w: bad maintenance token", shared.ErrForbidden))

			return
		}
	}

	res, err := h.svc.Sweeper.RunOnce(c.Request.Context())
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, res)
}
