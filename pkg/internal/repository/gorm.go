package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/shared"
)

// fileOrder 显式指定 NULL 排序，使 SQLite、MySQL 与 PostgreSQL 的结果一致.
const fileOrder = "captured_at IS NULL DESC, captured_at ASC, filename ASC"

// GormRepository 基于 GORM 的仓库实现.
type GormRepository struct {
	db *gorm.DB
}

// NewGorm 创建 GORM 仓库.
func NewGorm(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// wrap 把 GORM 错误映射为共享错误分类.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, shared.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, shared.ErrRepositoryUnavailable, err)
	}
}

func (r *GormRepository) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Take(&tag, "id = ?", id).Error; err != nil {
		return nil, wrap("get tag", err)
	}

	return &tag, nil
}

func (r *GormRepository) UpsertTag(ctx context.Context, tag *model.Tag) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(tag).Error

	return wrap("upsert tag", err)
}

func (r *GormRepository) RegisterTag(ctx context.Context, tag *model.Tag) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(tag)
	if res.Error != nil {
		return false, wrap("register tag", res.Error)
	}

	return res.RowsAffected == 1, nil
}

func (r *GormRepository) ListTagIDs(ctx context.Context, filter TagFilter) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&model.Tag{})
	if filter.Visibility != nil {
		q = q.Where("visibility = ?", *filter.Visibility)
	}

	ids := make([]string, 0)
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, wrap("list tags", err)
	}

	return ids, nil
}

func (r *GormRepository) ListOrphanTagIDs(ctx context.Context) ([]string, error) {
	db := r.db.WithContext(ctx)
	known := db.Model(&model.Tag{}).Select("id")

	var fromFiles, fromLogs []string

	if err := db.Model(&model.File{}).Distinct("tag").Where("tag NOT IN (?)", known).
		Pluck("tag", &fromFiles).Error; err != nil {
		return nil, wrap("list orphan files", err)
	}

	if err := db.Model(&model.AccessLog{}).Distinct("tag").Where("tag NOT IN (?)", known).
		Pluck("tag", &fromLogs).Error; err != nil {
		return nil, wrap("list orphan logs", err)
	}

	seen := make(map[string]struct{}, len(fromFiles)+len(fromLogs))
	ids := make([]string, 0, len(fromFiles)+len(fromLogs))

	for _, id := range append(fromFiles, fromLogs...) {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, nil
}

func (r *GormRepository) DeleteTag(ctx context.Context, id string) error {
	return wrap("delete tag", r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Tag{}).Error)
}

func (r *GormRepository) ListFiles(ctx context.Context, tag string, page Page) ([]model.File, error) {
	q := r.db.WithContext(ctx).Where("tag = ?", tag).Order(fileOrder)
	if page.Size > 0 {
		q = q.Offset(page.Offset()).Limit(page.Size)
	}

	files := make([]model.File, 0)
	if err := q.Find(&files).Error; err != nil {
		return nil, wrap("list files", err)
	}

	return files, nil
}

func (r *GormRepository) CountFiles(ctx context.Context, tag string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.File{}).Where("tag = ?", tag).Count(&n).Error; err != nil {
		return 0, wrap("count files", err)
	}

	return n, nil
}

func (r *GormRepository) GetFile(ctx context.Context, tag, filename string) (*model.File, error) {
	var f model.File
	if err := r.db.WithContext(ctx).Take(&f, "tag = ? AND filename = ?", tag, filename).Error; err != nil {
		return nil, wrap("get file", err)
	}

	return &f, nil
}

// UpsertFile 整体覆盖同名记录，包括下载计数.
func (r *GormRepository) UpsertFile(ctx context.Context, file *model.File) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tag"}, {Name: "filename"}},
			UpdateAll: true,
		}).
		Create(file).Error

	return wrap("upsert file", err)
}

func (r *GormRepository) IncrementDownloadCount(ctx context.Context, tag, filename string) error {
	res := r.db.WithContext(ctx).Model(&model.File{}).
		Where("tag = ? AND filename = ?", tag, filename).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))
	if res.Error != nil {
		return wrap("increment downloads", res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("increment downloads: %w", shared.ErrNotFound)
	}

	return nil
}

func (r *GormRepository) DeleteAllFiles(ctx context.Context, tag string) error {
	return wrap("delete files", r.db.WithContext(ctx).Where("tag = ?", tag).Delete(&model.File{}).Error)
}

func (r *GormRepository) AppendLog(ctx context.Context, entry *model.AccessLog) error {
	return wrap("append log", r.db.WithContext(ctx).Create(entry).Error)
}

func (r *GormRepository) ListLog(ctx context.Context, tag string, limit int) ([]model.AccessLog, error) {
	q := r.db.WithContext(ctx).Where("tag = ?", tag).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	entries := make([]model.AccessLog, 0)
	if err := q.Find(&entries).Error; err != nil {
		return nil, wrap("list log", err)
	}

	return entries, nil
}

func (r *GormRepository) DeleteAllLogs(ctx context.Context, tag string) error {
	return wrap("delete logs", r.db.WithContext(ctx).Where("tag = ?", tag).Delete(&model.AccessLog{}).Error)
}

func (r *GormRepository) Stats(ctx context.Context) (*Stats, error) {
	db := r.db.WithContext(ctx)

	var s Stats
	if err := db.Model(&model.Tag{}).Count(&s.Tags).Error; err != nil {
		return nil, wrap("stats", err)
	}

	if err := db.Model(&model.Tag{}).Where("visibility = ?", model.VisibilityPublic).Count(&s.PublicTags).Error; err != nil {
		return nil, wrap("stats", err)
	}

	if err := db.Model(&model.AccessLog{}).Count(&s.LogEntries).Error; err != nil {
		return nil, wrap("stats", err)
	}

	var sums struct {
		Files     int64
		Bytes     int64
		Downloads int64
	}

	err := db.Model(&model.File{}).
		Select("COUNT(*) AS files, COALESCE(SUM(size), 0) AS bytes, COALESCE(SUM(downloads), 0) AS downloads").
		Scan(&sums).Error
	if err != nil {
		return nil, wrap("stats", err)
	}

	s.Files, s.Bytes, s.Downloads = sums.Files, sums.Bytes, sums.Downloads

	return &s, nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return wrap("ping", err)
	}

	return wrap("ping", sqlDB.PingContext(ctx))
}
