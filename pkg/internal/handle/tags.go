package handle

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/tagdrop/pkg/internal/service"
)

// PublicTags 公开标签列表.
//
//	GET /tags/public
func (h *Handler) PublicTags(c *gin.Context) {
	ids, err := h.svc.Catalog.PublicTags(c.Request.Context())
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": ids})
}

// List 分页列出标签下的文件.
//
//	GET /tags/:tag?page=N
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	listing, err := h.svc.Catalog.List(c.Request.Context(), c.Param("tag"), page)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, listing)
}

// Download 下载单个文件，支持 Range 与 HEAD.
//
//	GET  /tags/:tag/files/:filename
//	HEAD /tags/:tag/files/:filename
func (h *Handler) Download(c *gin.Context) {
	var (
		dl  *service.Download
		err error
	)

	if countsAsDownload(c.Request) {
		dl, err = h.svc.Catalog.OpenFile(c.Request.Context(), c.Param("tag"), c.Param("filename"), client(c))
	} else {
		dl, err = h.svc.Catalog.PeekFile(c.Request.Context(), c.Param("tag"), c.Param("filename"))
	}

	if err != nil {
		h.fail(c, err)

		return
	}
	defer dl.Close()

	disposition := "attachment"
	if dl.Inline {
		disposition = "inline"
	}

	c.Header("Content-Type", dl.ContentType)
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": dl.Name}))
	c.Header("X-Content-Type-Options", "nosniff")

	http.ServeContent(c.Writer, c.Request, dl.Name, dl.ModTime, dl.File)
}

// Thumbnail 返回缩略图，不存在时当场生成.
//
//	GET /tags/:tag/thumbnails/:filename
func (h *Handler) Thumbnail(c *gin.Context) {
	path, err := h.svc.Catalog.Thumbnail(c.Request.Context(), c.Param("tag"), c.Param("filename"))
	if err != nil {
		h.fail(c, err)

		return
	}

	c.Header("Content-Type", "image/jpeg")
	c.Header("Cache-Control", "private, max-age=300")
	c.File(path)
}

// Archive 以 ZIP 流下载标签下的全部文件.
//
//	GET /tags/:tag/archive
func (h *Handler) Archive(c *gin.Context) {
	arc, err := h.svc.Archiver.Open(c.Request.Context(), c.Param("tag"), client(c))
	if err != nil {
		h.fail(c, err)

		return
	}

	defer func() {
		if err := arc.Close(); err != nil {
			h.logger.Warn().Err(err).Str("tag", c.Param("tag")).Msg("archive stream incomplete")
		}
	}()

	c.DataFromReader(http.StatusOK, -1, arc.ContentType, arc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": arc.Name}),
		"X-Archive-Files":     strconv.Itoa(arc.Files),
	})
}

// countsAsDownload 只有从头开始的 GET 计入下载次数；HEAD 与续传的分段请求不计.
func countsAsDownload(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}

	rng := strings.TrimSpace(r.Header.Get("Range"))

	return rng == "" || strings.HasPrefix(rng, "bytes=0-")
}
