package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shard"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/metrics"
)

// thumbnailTypes 可生成缩略图的类型.
var thumbnailTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Thumbnailer 按需生成缩略图，结果与原文件在平行的分片目录下同名存放.
type Thumbnailer struct {
	repo   repository.Repository
	layout shard.Layout
	cfg    configs.ThumbnailConfig
	group  singleflight.Group
	logger zerolog.Logger
}

// NewThumbnailer 创建缩略图引擎.
func NewThumbnailer(repo repository.Repository, layout shard.Layout, cfg configs.ThumbnailConfig) *Thumbnailer {
	if cfg.Width <= 0 {
		cfg.Width = configs.DefaultThumbnailWidth
	}

	if cfg.Height <= 0 {
		cfg.Height = configs.DefaultThumbnailHeight
	}

	if cfg.Quality <= 0 {
		cfg.Quality = 85
	}

	return &Thumbnailer{repo: repo, layout: layout, cfg: cfg, logger: nlog.Component("thumbnail")}
}

// Supports 判断 mime 类型是否可以生成缩略图.
func Supports(mimeType string) bool {
	return thumbnailTypes[mimeType]
}

// Ensure 查询标签与文件记录后调用 EnsureFor.
func (t *Thumbnailer) Ensure(ctx context.Context, tagID, filename string) (string, bool) {
	if validateFile(tagID, filename) != nil {
		return "", false
	}

	tag, err := t.repo.GetTag(ctx, tagID)
	if err != nil {
		return "", false
	}

	file, err := t.repo.GetFile(ctx, tagID, filename)
	if err != nil {
		return "", false
	}

	return t.EnsureFor(ctx, tag, file)
}

// EnsureFor 保证缩略图存在并返回其路径. 预览关闭、类型不支持或生成失败时返回 false，
// 失败只记录日志.
func (t *Thumbnailer) EnsureFor(ctx context.Context, tag *model.Tag, file *model.File) (string, bool) {
	if !tag.PreviewEnabled || !Supports(file.MimeType) {
		return "", false
	}

	dst, err := t.layout.ThumbPath(file.Tag, file.Filename)
	if err != nil {
		return "", false
	}

	if _, err := os.Stat(dst); err == nil {
		return dst, true
	}

	if ctx.Err() != nil {
		return "", false
	}

	_, err, _ = t.group.Do(dst, func() (any, error) {
		// 等待期间可能已被其他调用生成
		if _, err := os.Stat(dst); err == nil {
			return nil, nil
		}

		return nil, t.generate(file, dst)
	})
	if err != nil {
		metrics.ThumbnailsTotal.WithLabelValues(metrics.ResultError).Inc()
		t.logger.Warn().Err(err).Str("tag", file.Tag).Str("filename", file.Filename).Msg("thumbnail generation failed")

		return "", false
	}

	return dst, true
}

func (t *Thumbnailer) generate(file *model.File, dst string) error {
	src, err := t.layout.FilePath(file.Tag, file.Filename)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrThumbnailGenerationFailed, err)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: decode: %w", shared.ErrThumbnailGenerationFailed, err)
	}

	thumb := imaging.Fit(img, t.cfg.Width, t.cfg.Height, imaging.Lanczos)

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrThumbnailGenerationFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".thumb-*")
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrThumbnailGenerationFailed, err)
	}

	err = imaging.Encode(tmp, thumb, imaging.JPEG, imaging.JPEGQuality(t.cfg.Quality))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("%w: encode: %w", shared.ErrThumbnailGenerationFailed, err)
	}

	metrics.ThumbnailsTotal.WithLabelValues(metrics.ResultOK).Inc()
	t.logger.Debug().Str("tag", file.Tag).Str("filename", file.Filename).Msg("thumbnail generated")

	return nil
}

// Path 返回已存在的缩略图路径，不会触发生成.
func (t *Thumbnailer) Path(tagID, filename string) (string, bool) {
	dst, err := t.layout.ThumbPath(tagID, filename)
	if err != nil {
		return "", false
	}

	if _, err := os.Stat(dst); err != nil {
		return "", false
	}

	return dst, true
}

// Invalidate 删除缩略图，原文件被覆盖时调用.
func (t *Thumbnailer) Invalidate(tagID, filename string) {
	dst, err := t.layout.ThumbPath(tagID, filename)
	if err != nil {
		return
	}

	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn().Err(err).Str("tag", tagID).Str("filename", filename).Msg("failed to remove stale thumbnail")
	}
}
