// Package repository 是标签、文件记录与访问日志的元数据仓库.
//
// 仓库是“什么存在”的唯一依据：磁盘上的文件只有在仓库中有记录时才会出现在列表与归档中.
// 所有实现返回的错误都包装自 shared 中的哨兵：记录不存在为 ErrNotFound，
// 后端不可达为 ErrRepositoryUnavailable.
package repository

import (
	"context"
	"time"

	"github.com/yeisme/tagdrop/pkg/internal/model"
)

// TagFilter 标签列表过滤条件，零值表示全部.
type TagFilter struct {
	Visibility *model.Visibility
}

// Page 分页参数，Number 从 1 开始；Size<=0 表示不分页.
type Page struct {
	Number int
	Size   int
}

// Offset 返回分页偏移量.
func (p Page) Offset() int {
	if p.Size <= 0 || p.Number <= 1 {
		return 0
	}

	return (p.Number - 1) * p.Size
}

// Stats 元数据库汇总信息.
type Stats struct {
	Tags       int64 `json:"tags"`
	PublicTags int64 `json:"public_tags"`
	Files      int64 `json:"files"`
	Bytes      int64 `json:"bytes"`
	Downloads  int64 `json:"downloads"`
	LogEntries int64 `json:"log_entries"`
}

// Repository 元数据仓库.
type Repository interface {
	GetTag(ctx context.Context, id string) (*model.Tag, error)
	// UpsertTag 按 id 创建或整体替换.
	UpsertTag(ctx context.Context, tag *model.Tag) error
	// RegisterTag 仅在标签不存在时插入，返回本次调用是否创建了它.
	RegisterTag(ctx context.Context, tag *model.Tag) (bool, error)
	ListTagIDs(ctx context.Context, filter TagFilter) ([]string, error)
	// ListOrphanTagIDs 返回在文件或访问日志中出现但没有标签记录的 id.
	ListOrphanTagIDs(ctx context.Context) ([]string, error)
	DeleteTag(ctx context.Context, id string) error

	// ListFiles 按 capturedAt 升序返回，没有拍摄时间的文件排在最前，同时间按文件名.
	ListFiles(ctx context.Context, tag string, page Page) ([]model.File, error)
	CountFiles(ctx context.Context, tag string) (int64, error)
	GetFile(ctx context.Context, tag, filename string) (*model.File, error)
	UpsertFile(ctx context.Context, file *model.File) error
	// IncrementDownloadCount 只更新已存在的记录，不存在时返回 ErrNotFound.
	IncrementDownloadCount(ctx context.Context, tag, filename string) error
	DeleteAllFiles(ctx context.Context, tag string) error

	AppendLog(ctx context.Context, entry *model.AccessLog) error
	// ListLog 按时间倒序返回，limit<=0 表示全部.
	ListLog(ctx context.Context, tag string, limit int) ([]model.AccessLog, error)
	DeleteAllLogs(ctx context.Context, tag string) error

	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
}

// 编译期检查.
var (
	_ Repository = (*GormRepository)(nil)
	_ Repository = (*Breaker)(nil)
	_ Repository = (*CachedTags)(nil)
)

// DefaultTimeout 单次仓库调用的默认超时.
const DefaultTimeout = 10 * time.Second
