package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/service"
)

// UploadResponse 上传成功的响应体.
type UploadResponse struct {
	Tag              string      `json:"tag"`
	File             *model.File `json:"file"`
	TagCreated       bool        `json:"tag_created"`
	Secret           string      `json:"secret,omitempty"` // 仅在创建标签时返回一次
	Replaced         bool        `json:"replaced"`
	ChecksumMismatch bool        `json:"checksum_mismatch,omitempty"`
}

// Upload 以请求体为文件内容上传.
//
//	POST /
//	X-Tag: 可选，缺省时生成新标签
//	X-Filename: 必填，也可用 ?filename=
//	Content-MD5: 可选，十六进制或 base64
func (h *Handler) Upload(c *gin.Context) {
	tag := c.GetHeader(HeaderTag)
	if tag == "" {
		id, err := service.GenerateTagID()
		if err != nil {
			h.fail(c, err)

			return
		}

		tag = id
	}

	filename := c.GetHeader(HeaderFilename)
	if filename == "" {
		filename = c.Query("filename")
	}

	res, err := h.svc.Uploader.Upload(c.Request.Context(), service.UploadRequest{
		Tag:      tag,
		Filename: filename,
		Client:   client(c),
		Checksum: c.GetHeader(HeaderContentMD5),
		Body:     c.Request.Body,
	})
	if err != nil {
		h.fail(c, err)

		return
	}

	c.Header(HeaderTag, tag)
	c.JSON(http.StatusCreated, UploadResponse{
		Tag:              tag,
		File:             res.File,
		TagCreated:       res.TagCreated,
		Secret:           res.Secret,
		Replaced:         res.Replaced,
		ChecksumMismatch: res.ChecksumMismatch,
	})
}

// NewTag 返回一个新生成的标签 ID，不做注册.
//
//	GET /tags/new
func (h *Handler) NewTag(c *gin.Context) {
	id, err := service.GenerateTagID()
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"tag": id})
}
