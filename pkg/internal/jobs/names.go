package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobLifecycleSweep = "lifecycle.sweep"

	// ConsumerWarmThumbnails 文件写入后预生成缩略图.
	ConsumerWarmThumbnails = "thumbnails.warm"
	// ConsumerReapAudit 记录标签清理事件.
	ConsumerReapAudit = "lifecycle.reap_audit"
)
