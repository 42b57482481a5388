package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shard"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/metrics"
	"github.com/yeisme/tagdrop/pkg/queue"
	"github.com/yeisme/tagdrop/pkg/tracing"
)

// inlineTypes 浏览器可直接展示的类型，其余类型以附件形式下载.
var inlineTypes = regexp.MustCompile(`^(image|video|audio)/|^text/plain|^application/pdf`)

// FileView 列表中的一条文件，附带派生字段.
type FileView struct {
	Filename       string     `json:"filename"`
	Size           int64      `json:"size"`
	SizeHuman      string     `json:"size_human"`
	MimeType       string     `json:"mime_type"`
	Checksum       string     `json:"checksum"`
	CapturedAt     *time.Time `json:"captured_at,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
	UploadedAgo    string     `json:"uploaded_ago"`
	Downloads      int64      `json:"downloads"`
	Bandwidth      int64      `json:"bandwidth"`
	BandwidthHuman string     `json:"bandwidth_human"`
	Thumbnail      bool       `json:"thumbnail"` // 是否可以请求缩略图
}

// Listing 标签文件列表的一页.
type Listing struct {
	Tag        string           `json:"tag"`
	Exists     bool             `json:"exists"`
	Degraded   bool             `json:"degraded,omitempty"` // 元数据库不可达，列表为空
	Visibility model.Visibility `json:"visibility,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
	Page       int              `json:"page"`
	Pages      int              `json:"pages"`
	PageSize   int              `json:"page_size"`
	Total      int64            `json:"total"`
	Files      []FileView       `json:"files"`
}

// Download 打开的文件，调用方负责 Close.
type Download struct {
	*os.File

	Name        string
	Size        int64
	ContentType string
	Inline      bool
	ModTime     time.Time
}

// Catalog 负责列表、单文件下载、缩略图与公开标签查询.
type Catalog struct {
	repo   repository.Repository
	layout shard.Layout
	thumbs *Thumbnailer
	cfg    configs.ListingConfig
	events *queue.Publisher
	now    func() time.Time
	logger zerolog.Logger
}

// NewCatalog 创建目录服务.
func NewCatalog(repo repository.Repository, layout shard.Layout, thumbs *Thumbnailer,
	cfg configs.ListingConfig, events *queue.Publisher, now func() time.Time,
) *Catalog {
	if cfg.PageSize <= 0 {
		cfg.PageSize = configs.DefaultListingPageSize
	}

	return &Catalog{
		repo:   repo,
		layout: layout,
		thumbs: thumbs,
		cfg:    cfg,
		events: events,
		now:    now,
		logger: nlog.Component("catalog"),
	}
}

// liveTag 返回未过期的标签，过期但尚未清理的标签视为不存在.
func (c *Catalog) liveTag(ctx context.Context, tagID string) (*model.Tag, error) {
	tag, err := c.repo.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}

	if tag.Expired(c.now()) {
		return nil, fmt.Errorf("%w: tag %s expired", shared.ErrNotFound, tagID)
	}

	return tag, nil
}

// List 返回一页文件. 页码越界时被夹到有效范围；标签不存在时返回 Exists=false 的空列表，
// 元数据库不可达时返回 Degraded=true 的空列表.
func (c *Catalog) List(ctx context.Context, tagID string, page int) (*Listing, error) {
	if err := validateTag(tagID); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "catalog.list")
	defer span.End()

	out := &Listing{Tag: tagID, Page: 1, Pages: 1, PageSize: c.cfg.PageSize, Files: []FileView{}}

	tag, err := c.liveTag(ctx, tagID)
	if err != nil {
		return c.degrade(out, err)
	}

	out.Exists = true
	out.Visibility = tag.Visibility

	if at, ok := tag.ExpiresAt(); ok {
		out.ExpiresAt = &at
	}

	total, err := c.repo.CountFiles(ctx, tagID)
	if err != nil {
		return c.degrade(out, err)
	}

	out.Total = total
	out.Pages = max(1, int((total+int64(c.cfg.PageSize)-1)/int64(c.cfg.PageSize)))
	out.Page = min(max(page, 1), out.Pages)

	files, err := c.repo.ListFiles(ctx, tagID, repository.Page{Number: out.Page, Size: c.cfg.PageSize})
	if err != nil {
		return c.degrade(out, err)
	}

	now := c.now()
	for i := range files {
		out.Files = append(out.Files, c.view(tag, &files[i], now))
	}

	return out, nil
}

func (c *Catalog) degrade(out *Listing, err error) (*Listing, error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		out.Exists = false

		return out, nil
	case errors.Is(err, shared.ErrRepositoryUnavailable):
		c.logger.Warn().Err(err).Str("tag", out.Tag).Msg("repository unavailable, serving empty listing")

		out.Degraded = true

		return out, nil
	default:
		return nil, err
	}
}

func (c *Catalog) view(tag *model.Tag, f *model.File, now time.Time) FileView {
	bw := f.Bandwidth()

	return FileView{
		Filename:       f.Filename,
		Size:           f.Size,
		SizeHuman:      humanize.IBytes(uint64(max(f.Size, 0))),
		MimeType:       f.MimeType,
		Checksum:       f.Checksum,
		CapturedAt:     f.CapturedAt,
		UploadedAt:     f.UploadedAt,
		UploadedAgo:    humanize.RelTime(f.UploadedAt, now, "ago", "from now"),
		Downloads:      f.Downloads,
		Bandwidth:      bw,
		BandwidthHuman: humanize.IBytes(uint64(max(bw, 0))),
		Thumbnail:      tag.PreviewEnabled && Supports(f.MimeType),
	}
}

// OpenFile 打开文件用于完整下载，同时累加下载计数并记录访问日志.
func (c *Catalog) OpenFile(ctx context.Context, tagID, filename, client string) (*Download, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.download")
	defer span.End()

	dl, err := c.open(ctx, tagID, filename)
	if err != nil {
		return nil, err
	}

	logger := c.logger.With().Str("tag", tagID).Str("filename", filename).Logger()
	log := nlog.Ctx(ctx, &logger)

	if err := c.repo.IncrementDownloadCount(ctx, tagID, filename); err != nil {
		log.Warn().Err(err).Msg("failed to increment download count")
	}

	entry := model.NewAccessLog(tagID, filename, client, model.DirectionDownload, c.now())
	if err := c.repo.AppendLog(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("failed to append download log")
	}

	metrics.DownloadsTotal.Inc()
	c.events.FileDownloaded(ctx, queue.FileDownloadedPayload{
		File:   queue.FileRef{Tag: tagID, Filename: filename},
		Client: client,
	})

	return dl, nil
}

// PeekFile 与 OpenFile 相同，但不计数也不记录日志，用于 HEAD 与续传的 Range 请求.
func (c *Catalog) PeekFile(ctx context.Context, tagID, filename string) (*Download, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.peek")
	defer span.End()

	return c.open(ctx, tagID, filename)
}

func (c *Catalog) open(ctx context.Context, tagID, filename string) (*Download, error) {
	if err := validateFile(tagID, filename); err != nil {
		return nil, err
	}

	if _, err := c.liveTag(ctx, tagID); err != nil {
		return nil, err
	}

	file, err := c.repo.GetFile(ctx, tagID, filename)
	if err != nil {
		return nil, err
	}

	path, err := c.layout.FilePath(tagID, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s missing on disk", shared.ErrNotFound, filename)
		}

		return nil, fmt.Errorf("open %s: %w", filename, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("stat %s: %w", filename, err)
	}

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Download{
		File:        f,
		Name:        filename,
		Size:        info.Size(),
		ContentType: contentType,
		Inline:      inlineTypes.MatchString(contentType),
		ModTime:     info.ModTime(),
	}, nil
}

// Thumbnail 返回缩略图路径，必要时当场生成.
func (c *Catalog) Thumbnail(ctx context.Context, tagID, filename string) (string, error) {
	if err := validateFile(tagID, filename); err != nil {
		return "", err
	}

	tag, err := c.liveTag(ctx, tagID)
	if err != nil {
		return "", err
	}

	file, err := c.repo.GetFile(ctx, tagID, filename)
	if err != nil {
		return "", err
	}

	path, ok := c.thumbs.EnsureFor(ctx, tag, file)
	if !ok {
		return "", fmt.Errorf("%w: no thumbnail for %s", shared.ErrNotFound, filename)
	}

	return path, nil
}

// PublicTags 返回公开且未过期的标签.
func (c *Catalog) PublicTags(ctx context.Context) ([]string, error) {
	public := model.VisibilityPublic

	ids, err := c.repo.ListTagIDs(ctx, repository.TagFilter{Visibility: &public})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, err := c.liveTag(ctx, id); err == nil {
			out = append(out, id)
		}
	}

	return out, nil
}
