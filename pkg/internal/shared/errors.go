// Package shared 定义跨组件共享的错误分类.
//
// 组件返回的错误都包装自下列哨兵之一，调用方用 errors.Is 判断并决定是否致命：
// 参数错误与鉴权错误立即返回且没有副作用；缩略图生成失败只记录日志.
package shared

import "errors"

var (
	// ErrInvalidInput 标签、文件名或配置格式非法，属于用户错误，无需重试.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound 标签或文件不存在.
	ErrNotFound = errors.New("not found")
	// ErrForbidden 只读标签或密钥错误.
	ErrForbidden = errors.New("forbidden")
	// ErrRepositoryUnavailable 元数据库不可达，调用方可退避重试.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	// ErrStorageWriteFailed 文件系统写入或移动失败.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrThumbnailGenerationFailed 缩略图生成失败，总是非致命.
	ErrThumbnailGenerationFailed = errors.New("thumbnail generation failed")
	// ErrChecksumMismatch 客户端校验和与内容不符（仅在严格模式下返回）.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrTooLarge 上传内容超过大小上限.
	ErrTooLarge = errors.New("upload too large")
)
