// Package service 实现文件投放的核心逻辑：上传、缩略图、过期清理、打包下载、列表与标签管理.
// 本包不处理 HTTP 细节，错误统一包装自 shared 中的哨兵.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shard"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	"github.com/yeisme/tagdrop/pkg/queue"
	"github.com/yeisme/tagdrop/pkg/rule"
)

// Deps 构造各服务所需的依赖.
type Deps struct {
	Repo   repository.Repository
	Config *configs.AppConfig
	Events *queue.Publisher // 可为 nil
	Now    func() time.Time // 可为 nil，测试时注入
}

// Services 聚合全部服务，启动时构造一次.
type Services struct {
	Auth       *Authenticator
	Uploader   *Uploader
	Thumbnails *Thumbnailer
	Sweeper    *Sweeper
	Archiver   *Archiver
	Catalog    *Catalog
	Admin      *Admin
}

// New 按依赖构造全部服务.
func New(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}

	cfg := d.Config
	layout := LayoutFrom(cfg.Storage)

	auth := NewAuthenticator(d.Repo, cfg.Security)
	thumbs := NewThumbnailer(d.Repo, layout, cfg.Thumbnail)

	return &Services{
		Auth:       auth,
		Uploader:   NewUploader(d.Repo, layout, auth, thumbs, cfg.Upload, d.Events, d.Now),
		Thumbnails: thumbs,
		Sweeper:    NewSweeper(d.Repo, layout, thumbs, cfg.Lifecycle, d.Events, d.Now),
		Archiver:   NewArchiver(d.Repo, layout, d.Events, d.Now),
		Catalog:    NewCatalog(d.Repo, layout, thumbs, cfg.Listing, d.Events, d.Now),
		Admin:      NewAdmin(d.Repo, auth, d.Now),
	}
}

// LayoutFrom 由存储配置构造磁盘布局.
func LayoutFrom(cfg configs.StorageConfig) shard.Layout {
	return shard.Layout{
		FileRoot:  cfg.FileRoot,
		ThumbRoot: cfg.ThumbRoot,
		TempRoot:  cfg.TempRoot,
	}
}

// validateTag 校验标签 ID 语法，失败时返回 ErrInvalidInput.
func validateTag(tag string) error {
	if !rule.IsTagID(tag) {
		return fmt.Errorf("%w: malformed tag", shared.ErrInvalidInput)
	}

	return nil
}

// validateFile 同时校验标签 ID 与文件名.
func validateFile(tag, filename string) error {
	if err := validateTag(tag); err != nil {
		return err
	}

	if !rule.IsFilename(filename) {
		return fmt.Errorf("%w: malformed filename", shared.ErrInvalidInput)
	}

	return nil
}

// ctxReader 在每次读取前检查 ctx，使客户端断开后拷贝尽快停止.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
