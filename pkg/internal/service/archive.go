package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shard"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/metrics"
	"github.com/yeisme/tagdrop/pkg/queue"
)

// Archive 标签全部文件的 ZIP 流. 读取方的速度决定生成速度；Close 会中止生成并等待其退出.
type Archive struct {
	Name        string // <tag>.zip
	ContentType string
	Files       int // 记录中的文件数，磁盘上缺失的会被跳过

	r      *io.PipeReader
	cancel context.CancelFunc
	g      *errgroup.Group
}

func (a *Archive) Read(p []byte) (int, error) {
	return a.r.Read(p)
}

// Close 中止生成并等待生成协程退出. 正常读完后调用返回 nil.
func (a *Archive) Close() error {
	a.cancel()
	_ = a.r.CloseWithError(io.ErrClosedPipe)

	err := a.g.Wait()
	if err == nil || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Archiver 把标签下的文件打包为扁平的 ZIP 流.
type Archiver struct {
	repo   repository.Repository
	layout shard.Layout
	events *queue.Publisher
	now    func() time.Time
	logger zerolog.Logger
}

// NewArchiver 创建打包器.
func NewArchiver(repo repository.Repository, layout shard.Layout, events *queue.Publisher, now func() time.Time) *Archiver {
	return &Archiver{repo: repo, layout: layout, events: events, now: now, logger: nlog.Component("archive")}
}

// Open 校验标签并启动生成协程. 标签不存在、已过期、没有目录或没有文件时返回 ErrNotFound，
// 此时不会产生任何字节.
func (a *Archiver) Open(ctx context.Context, tagID, client string) (*Archive, error) {
	if err := validateTag(tagID); err != nil {
		return nil, err
	}

	tag, err := a.repo.GetTag(ctx, tagID)
	if err != nil {
		return nil, err
	}

	if tag.Expired(a.now()) {
		return nil, fmt.Errorf("%w: tag %s expired", shared.ErrNotFound, tagID)
	}

	dir, err := a.layout.TagDir(tagID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: no directory for tag %s", shared.ErrNotFound, tagID)
	}

	files, err := a.repo.ListFiles(ctx, tagID, repository.Page{})
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: tag %s has no files", shared.ErrNotFound, tagID)
	}

	name := tagID + ".zip"

	entry := model.NewAccessLog(tagID, name, client, model.DirectionDownload, a.now())
	if err := a.repo.AppendLog(ctx, entry); err != nil {
		a.logger.Warn().Err(err).Str("tag", tagID).Msg("failed to append archive log")
	}

	pctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	g, gctx := errgroup.WithContext(pctx)
	stop := context.AfterFunc(gctx, func() { _ = pw.CloseWithError(gctx.Err()) })

	g.Go(func() error {
		defer stop()

		err := a.produce(gctx, pw, files, client)
		_ = pw.CloseWithError(err)

		if err != nil {
			metrics.ArchiveStreams.WithLabelValues(metrics.ResultError).Inc()
			a.logger.Warn().Err(err).Str("tag", tagID).Msg("archive stream aborted")
		} else {
			metrics.ArchiveStreams.WithLabelValues(metrics.ResultOK).Inc()
		}

		return err
	})

	return &Archive{
		Name:        name,
		ContentType: "application/zip",
		Files:       len(files),
		r:           pr,
		cancel:      cancel,
		g:           g,
	}, nil
}

func (a *Archiver) produce(ctx context.Context, w io.Writer, files []model.File, client string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for i := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := a.addFile(ctx, zw, &files[i], client); err != nil {
			return err
		}
	}

	return zw.Close()
}

func (a *Archiver) addFile(ctx context.Context, zw *zip.Writer, f *model.File, client string) error {
	path, err := a.layout.FilePath(f.Tag, f.Filename)
	if err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.logger.Warn().Str("tag", f.Tag).Str("filename", f.Filename).Msg("file missing on disk, skipped")

			return nil
		}

		return fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer src.Close()

	hdr := &zip.FileHeader{
		Name:     f.Filename,
		Method:   zip.Deflate,
		Modified: f.UploadedAt,
	}

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, ctxReader{ctx: ctx, r: src}); err != nil {
		return fmt.Errorf("write %s: %w", f.Filename, err)
	}

	a.events.FileDownloaded(ctx, queue.FileDownloadedPayload{
		File:    queue.FileRef{Tag: f.Tag, Filename: f.Filename},
		Client:  client,
		Archive: true,
	})

	return nil
}
