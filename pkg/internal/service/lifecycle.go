package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/shard"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
	nlog "github.com/yeisme/tagdrop/pkg/log"
	"github.com/yeisme/tagdrop/pkg/metrics"
	"github.com/yeisme/tagdrop/pkg/queue"
	"github.com/yeisme/tagdrop/pkg/rule"
	"github.com/yeisme/tagdrop/pkg/tracing"
)

// ErrSweepRunning 上一次清理尚未结束.
var ErrSweepRunning = errors.New("sweep already running")

// SweepResult 一次清理的统计.
type SweepResult struct {
	Scanned    int           `json:"scanned"`    // 检查过的标签数（含孤儿）
	Reaped     []string      `json:"reaped"`     // 被清理的标签
	Failed     []string      `json:"failed"`     // 清理中有步骤失败的标签，下次重试
	Thumbnails int           `json:"thumbnails"` // 为存活标签生成或确认的缩略图数
	Duration   time.Duration `json:"duration"`
}

// Sweeper 周期性地清理过期标签，并为存活标签补齐缩略图.
type Sweeper struct {
	repo   repository.Repository
	layout shard.Layout
	thumbs *Thumbnailer
	cfg    configs.LifecycleConfig
	events *queue.Publisher
	now    func() time.Time
	logger zerolog.Logger

	running sync.Mutex
}

// NewSweeper 创建清理器.
func NewSweeper(repo repository.Repository, layout shard.Layout, thumbs *Thumbnailer,
	cfg configs.LifecycleConfig, events *queue.Publisher, now func() time.Time,
) *Sweeper {
	return &Sweeper{
		repo:   repo,
		layout: layout,
		thumbs: thumbs,
		cfg:    cfg,
		events: events,
		now:    now,
		logger: nlog.Component("lifecycle"),
	}
}

// RunOnce 执行一次完整的清理. 已有清理在运行时立即返回 ErrSweepRunning.
// ctx 取消后在两个标签之间停止.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	if !s.running.TryLock() {
		metrics.SweepRuns.WithLabelValues(metrics.ResultSkipped).Inc()

		return nil, ErrSweepRunning
	}
	defer s.running.Unlock()

	ctx, span := tracing.StartSpan(ctx, "lifecycle.sweep")
	defer span.End()

	start := time.Now()
	res := &SweepResult{}

	ids, err := s.candidates(ctx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues(metrics.ResultError).Inc()
		span.RecordError(err)

		return nil, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			metrics.SweepRuns.WithLabelValues(metrics.ResultError).Inc()

			return res, err
		}

		res.Scanned++
		s.sweepTag(ctx, id, res)
	}

	res.Duration = time.Since(start)

	metrics.SweepDuration.Observe(res.Duration.Seconds())
	metrics.SweepRuns.WithLabelValues(metrics.ResultOK).Inc()

	s.logger.Info().
		Int("scanned", res.Scanned).
		Int("reaped", len(res.Reaped)).
		Int("failed", len(res.Failed)).
		Int("thumbnails", res.Thumbnails).
		Dur("duration", res.Duration).
		Msg("sweep finished")

	return res, nil
}

// candidates 汇总已注册标签、元数据中的孤儿 id 与磁盘上的标签目录，去重.
func (s *Sweeper) candidates(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListTagIDs(ctx, repository.TagFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	add := func(more []string) {
		for _, id := range more {
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	orphans, err := s.repo.ListOrphanTagIDs(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list orphan tag ids")
	} else {
		add(orphans)
	}

	if s.cfg.ScanDisk {
		for _, root := range []string{s.layout.FileRoot, s.layout.ThumbRoot} {
			dirs, err := shard.TagDirs(root, rule.IsTagID)
			if err != nil {
				s.logger.Warn().Err(err).Str("root", root).Msg("failed to scan tag directories")

				continue
			}

			add(dirs)
		}
	}

	return ids, nil
}

func (s *Sweeper) sweepTag(ctx context.Context, id string, res *SweepResult) {
	tag, err := s.repo.GetTag(ctx, id)

	switch {
	case errors.Is(err, shared.ErrNotFound):
		// 孤儿：元数据或目录残留，标签本身已不存在
	case err != nil:
		s.logger.Warn().Err(err).Str("tag", id).Msg("failed to load tag")

		return
	case !tag.Expired(s.now()):
		res.Thumbnails += s.ensureThumbnails(ctx, tag)

		return
	}

	if err := s.reap(ctx, id, tag); err != nil {
		res.Failed = append(res.Failed, id)

		return
	}

	res.Reaped = append(res.Reaped, id)
}

func (s *Sweeper) ensureThumbnails(ctx context.Context, tag *model.Tag) int {
	if !tag.PreviewEnabled {
		return 0
	}

	files, err := s.repo.ListFiles(ctx, tag.ID, repository.Page{})
	if err != nil {
		s.logger.Warn().Err(err).Str("tag", tag.ID).Msg("failed to list files for thumbnails")

		return 0
	}

	n := 0

	for i := range files {
		if ctx.Err() != nil {
			break
		}

		if _, ok := s.thumbs.EnsureFor(ctx, tag, &files[i]); ok {
			n++
		}
	}

	return n
}

// Reap 删除标签的全部痕迹：文件记录、访问日志、文件与缩略图目录，最后删除标签记录.
// 每一步独立尝试，失败合并返回，重复调用是安全的.
func (s *Sweeper) Reap(ctx context.Context, id string) error {
	if err := validateTag(id); err != nil {
		return err
	}

	tag, err := s.repo.GetTag(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	return s.reap(ctx, id, tag)
}

func (s *Sweeper) reap(ctx context.Context, id string, tag *model.Tag) error {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.reap")
	defer span.End()

	logger := s.logger.With().Str("tag", id).Logger()
	log := nlog.Ctx(ctx, &logger)

	files, _ := s.repo.CountFiles(ctx, id)

	var errs []error

	if err := s.repo.DeleteAllFiles(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("delete file records: %w", err))
	}

	if err := s.repo.DeleteAllLogs(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("delete access logs: %w", err))
	}

	for _, dirOf := range []func(string) (string, error){s.layout.TagDir, s.layout.ThumbDir} {
		dir, err := dirOf(id)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("%w: remove %s: %w", shared.ErrStorageWriteFailed, dir, err))

			continue
		}

		pruneEmpty(filepath.Dir(dir), 2)
	}

	// 各步骤互不依赖；残留的记录、日志或目录由下一次清理的孤儿发现找回
	if err := s.repo.DeleteTag(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("delete tag: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		metrics.ReapErrors.Add(float64(len(errs)))
		span.RecordError(err)
		log.Error().Err(err).Msg("reap incomplete")

		return err
	}

	metrics.TagsReaped.Inc()
	log.Info().Int64("files", files).Msg("tag reaped")

	payload := queue.TagReapedPayload{Tag: id, Files: files}
	if tag != nil {
		payload.RegisteredAt = tag.RegisteredAt
		payload.TTL = tag.TTL.String()
	}

	s.events.TagReaped(ctx, payload)

	return nil
}

// pruneEmpty 自下而上删除最多 levels 层空的分片目录.
func pruneEmpty(dir string, levels int) {
	for range levels {
		if os.Remove(dir) != nil {
			return
		}

		dir = filepath.Dir(dir)
	}
}
