package service

import (
	"context"
	"crypto/md5" //nolint:gosec // 与 Content-MD5 头比较，不用于安全目的
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"

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

// UploadRequest 一次上传的输入.
type UploadRequest struct {
	Tag      string
	Filename string
	Client   string    // 来源标识，尽力而为
	Checksum string    // 可选，十六进制或 base64 编码的 MD5
	Body     io.Reader // 长度未知的内容流
}

// UploadResult 上传结果.
type UploadResult struct {
	File *model.File
	// TagCreated 本次上传创建了标签，Secret 仅在此时返回一次.
	TagCreated bool
	Secret     string
	// ChecksumMismatch 客户端校验和与内容不一致（宽松模式下仍然提交）.
	ChecksumMismatch bool
	// Replaced 覆盖了同名文件.
	Replaced bool
}

// Uploader 上传流水线：暂存、校验、识别类型、提取拍摄时间，然后原子地提交到分片目录与元数据.
type Uploader struct {
	repo   repository.Repository
	layout shard.Layout
	auth   *Authenticator
	thumbs *Thumbnailer
	cfg    configs.UploadConfig
	events *queue.Publisher
	locks  *keyLocks
	now    func() time.Time
	logger zerolog.Logger
}

// NewUploader 创建上传流水线.
func NewUploader(repo repository.Repository, layout shard.Layout, auth *Authenticator, thumbs *Thumbnailer,
	cfg configs.UploadConfig, events *queue.Publisher, now func() time.Time,
) *Uploader {
	return &Uploader{
		repo:   repo,
		layout: layout,
		auth:   auth,
		thumbs: thumbs,
		cfg:    cfg,
		events: events,
		locks:  newKeyLocks(cfg.LockStripes),
		now:    now,
		logger: nlog.Component("upload"),
	}
}

// staged 暂存后的内容与识别结果.
type staged struct {
	path       string
	size       int64
	checksum   string
	mimeType   string
	capturedAt *time.Time
}

// Upload 执行完整的上传流程. 任何失败都不会改变目标路径上的已有内容.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (res *UploadResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "upload")
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			metrics.UploadsTotal.WithLabelValues(metrics.ResultError).Inc()
		}
	}()

	if err := validateFile(req.Tag, req.Filename); err != nil {
		return nil, err
	}

	// 已有标签在暂存前检查；新标签要等内容落到暂存区后才注册，失败的首次上传不会留下无人知道密钥的标签
	tag, err := u.existingTag(ctx, req.Tag)
	if err != nil {
		return nil, err
	}

	st, err := u.stage(ctx, req.Body)
	if st != nil {
		// 暂存文件在任何退出路径上都要删除；提交成功后它已被移走
		defer func() { _ = os.Remove(st.path) }()
	}

	if err != nil {
		return nil, err
	}

	logger := u.logger.With().Str("tag", req.Tag).Str("filename", req.Filename).Logger()
	log := nlog.Ctx(ctx, &logger)

	res = &UploadResult{}

	if want, ok := parseChecksum(req.Checksum); !ok || (want != "" && want != st.checksum) {
		res.ChecksumMismatch = true

		metrics.ChecksumMismatches.Inc()
		log.Warn().Str("expected", req.Checksum).Str("actual", st.checksum).Msg("checksum mismatch")

		if u.cfg.StrictChecksum {
			return nil, fmt.Errorf("%w: expected %s, got %s", shared.ErrChecksumMismatch, req.Checksum, st.checksum)
		}
	}

	if tag == nil {
		if tag, res.Secret, err = u.registerTag(ctx, req.Tag); err != nil {
			return nil, err
		}

		res.TagCreated = res.Secret != ""
	}

	if err := AuthorizeWrite(tag); err != nil {
		return nil, err
	}

	file := &model.File{
		Tag:        req.Tag,
		Filename:   req.Filename,
		Size:       st.size,
		MimeType:   st.mimeType,
		Checksum:   st.checksum,
		CapturedAt: st.capturedAt,
		UploadedAt: u.now().UTC(),
		Downloads:  0,
	}

	replaced, err := u.commit(ctx, st.path, file)
	if err != nil {
		if res.TagCreated {
			u.rollbackTag(ctx, req.Tag)
		}

		return nil, err
	}

	res.File = file
	res.Replaced = replaced

	entry := model.NewAccessLog(req.Tag, req.Filename, req.Client, model.DirectionUpload, u.now())
	if err := u.repo.AppendLog(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("failed to append upload log")
	}

	metrics.UploadsTotal.WithLabelValues(metrics.ResultOK).Inc()
	metrics.UploadBytes.Add(float64(st.size))

	u.events.FileStored(ctx, queue.FileStoredPayload{
		File:     queue.FileRef{Tag: req.Tag, Filename: req.Filename},
		Size:     file.Size,
		MimeType: file.MimeType,
		Checksum: file.Checksum,
		Client:   req.Client,
		Replaced: replaced,
	})

	log.Info().Int64("size", file.Size).Str("mime", file.MimeType).Bool("replaced", replaced).Msg("file stored")

	return res, nil
}

// existingTag 返回可写入的已有标签；标签不存在时返回 nil.
// 已过期但尚未清理的标签与不存在的标签一样对待，只是不能再写入.
func (u *Uploader) existingTag(ctx context.Context, id string) (*model.Tag, error) {
	tag, err := u.repo.GetTag(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if tag.Expired(u.now()) {
		return nil, fmt.Errorf("%w: tag %s expired", shared.ErrNotFound, id)
	}

	if err := AuthorizeWrite(tag); err != nil {
		return nil, err
	}

	return tag, nil
}

// registerTag 以默认配置注册新标签并返回明文密钥. 并发的首次上传先注册时返回对方的标签与空密钥.
func (u *Uploader) registerTag(ctx context.Context, id string) (*model.Tag, string, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}

	hash, err := u.auth.HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	tag := model.NewTag(id, hash, u.now())

	created, err := u.repo.RegisterTag(ctx, tag)
	if err != nil {
		return nil, "", err
	}

	if created {
		u.logger.Info().Str("tag", id).Msg("tag registered")

		return tag, secret, nil
	}

	tag, err = u.repo.GetTag(ctx, id)
	if err != nil {
		return nil, "", err
	}

	return tag, "", nil
}

// rollbackTag 删除本次上传刚注册、但提交失败的标签，密钥从未发出.
// 期间已有其他文件写入时保留标签.
func (u *Uploader) rollbackTag(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)

	if n, err := u.repo.CountFiles(ctx, id); err != nil || n > 0 {
		return
	}

	if err := u.repo.DeleteTag(ctx, id); err != nil {
		u.logger.Warn().Err(err).Str("tag", id).Msg("failed to roll back tag")
	}
}

// stage 把内容流写入暂存目录，同时计算 MD5，然后识别类型与拍摄时间.
// 返回的 staged 非 nil 时调用方负责删除暂存文件.
func (u *Uploader) stage(ctx context.Context, body io.Reader) (*staged, error) {
	if body == nil {
		body = strings.NewReader("")
	}

	if err := os.MkdirAll(u.layout.TempRoot, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %w", shared.ErrStorageWriteFailed, err)
	}

	f, err := os.CreateTemp(u.layout.TempRoot, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging file: %w", shared.ErrStorageWriteFailed, err)
	}

	st := &staged{path: f.Name()}

	h := md5.New() //nolint:gosec

	var src io.Reader = ctxReader{ctx: ctx, r: body}

	limit := u.cfg.MaxSizeBytes()
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}

	n, err := io.Copy(io.MultiWriter(f, h), src)
	if err == nil {
		err = f.Sync()
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return st, ctxErr
		}

		return st, fmt.Errorf("%w: stage upload: %w", shared.ErrStorageWriteFailed, err)
	}

	if limit > 0 && n > limit {
		return st, fmt.Errorf("%w: more than %d bytes", shared.ErrTooLarge, limit)
	}

	st.size = n
	st.checksum = hex.EncodeToString(h.Sum(nil))

	if mt, err := mimetype.DetectFile(st.path); err == nil {
		st.mimeType = mt.String()
	} else {
		st.mimeType = "application/octet-stream"
	}

	if strings.HasPrefix(st.mimeType, "image/") {
		st.capturedAt = capturedAt(st.path)
	}

	return st, nil
}

// capturedAt 读取图片 EXIF 中的拍摄时间，失败返回 nil.
func capturedAt(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	// 子目录（GPS、Interop）损坏时 x 仍然可用
	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return nil
	}

	t, err := x.DateTime()
	if err != nil || t.IsZero() {
		return nil
	}

	t = t.UTC().Truncate(time.Second)

	return &t
}

// commit 在 (tag, filename) 锁内把暂存文件移动到目标路径并写入元数据.
// 移动失败时不触碰元数据.
func (u *Uploader) commit(ctx context.Context, stagedPath string, file *model.File) (bool, error) {
	dst, err := u.layout.FilePath(file.Tag, file.Filename)
	if err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}

	unlock := u.locks.lock(file.Tag, file.Filename)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return false, fmt.Errorf("%w: create tag dir: %w", shared.ErrStorageWriteFailed, err)
	}

	_, statErr := os.Stat(dst)
	replaced := statErr == nil

	if err := moveFile(stagedPath, dst); err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrStorageWriteFailed, err)
	}

	if replaced {
		u.thumbs.Invalidate(file.Tag, file.Filename)
	}

	if err := u.repo.UpsertFile(ctx, file); err != nil {
		// 文件已落盘但索引未更新，下次同名上传或清理会覆盖它
		u.logger.Error().Err(err).Str("tag", file.Tag).Str("filename", file.Filename).Msg("file stored on disk but metadata commit failed")

		return replaced, err
	}

	return replaced, nil
}

// moveFile 优先 rename；跨文件系统时先复制到目标目录下的临时文件再 rename，
// 保证目标路径上不会出现写了一半的内容.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".commit-*")
	if err != nil {
		return fmt.Errorf("create commit file: %w", err)
	}

	_, err = io.Copy(tmp, in)
	if err == nil {
		err = tmp.Sync()
	}

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("commit file: %w", err)
	}

	return nil
}

// parseChecksum 接受 32 位十六进制或 base64 编码（Content-MD5）的 MD5，统一为小写十六进制.
// 空串返回 ("", true)；无法解析时第二个返回值为 false.
func parseChecksum(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}

	if b, err := hex.DecodeString(s); err == nil && len(b) == md5.Size {
		return strings.ToLower(s), true
	}

	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == md5.Size {
		return hex.EncodeToString(b), true
	}

	return "", false
}
