// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：tagdrop.<域>.<动作>，尽量稳定且向后兼容.

const (
	// 文件领域.
	TopicFileStored     = "tagdrop.file.stored"     // 文件已落盘且元数据已写入
	TopicFileDownloaded = "tagdrop.file.downloaded" // 文件被下载（含归档流中的每个文件）

	// 标签领域.
	TopicTagReaped = "tagdrop.tag.reaped" // 过期标签的文件、日志与记录已清除
)

// AllTopics 全部主题.
var AllTopics = []string{TopicFileStored, TopicFileDownloaded, TopicTagReaped}
