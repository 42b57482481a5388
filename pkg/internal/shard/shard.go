// Package shard 把标签 ID 映射为两级目录，避免单个目录下条目过多.
//
//	<root>/<c1>/<c2>/<tag>/<filename>
//
// c1、c2 为标签 ID 的第一、第二个字符. 本包不做任何 I/O.
package shard

import (
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"
)

// ErrInvalidTag 标签 ID 少于两个字符.
var ErrInvalidTag = errors.New("invalid tag: need at least 2 characters")

// Shard 返回标签 ID 的两级分片目录名.
func Shard(tag string) (string, string, error) {
	if utf8.RuneCountInString(tag) < 2 {
		return "", "", ErrInvalidTag
	}

	first, n := utf8.DecodeRuneInString(tag)
	second, _ := utf8.DecodeRuneInString(tag[n:])

	return string(first), string(second), nil
}

// ResolvePath 返回 root/c1/c2/tag[/filename]，filename 为空时返回标签目录.
func ResolvePath(root, tag, filename string) (string, error) {
	l1, l2, err := Shard(tag)
	if err != nil {
		return "", err
	}

	if filename == "" {
		return filepath.Join(root, l1, l2, tag), nil
	}

	return filepath.Join(root, l1, l2, tag, filename), nil
}

// Layout 描述磁盘上的三个根目录.
type Layout struct {
	FileRoot  string // 文件内容
	ThumbRoot string // 缩略图，与 FileRoot 结构平行
	TempRoot  string // 上传暂存
}

// TagDir 标签的文件目录.
func (l Layout) TagDir(tag string) (string, error) {
	return ResolvePath(l.FileRoot, tag, "")
}

// ThumbDir 标签的缩略图目录.
func (l Layout) ThumbDir(tag string) (string, error) {
	return ResolvePath(l.ThumbRoot, tag, "")
}

// FilePath 文件内容路径.
func (l Layout) FilePath(tag, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty filename for tag %s", tag)
	}

	return ResolvePath(l.FileRoot, tag, filename)
}

// ThumbPath 缩略图路径.
func (l Layout) ThumbPath(tag, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty filename for tag %s", tag)
	}

	return ResolvePath(l.ThumbRoot, tag, filename)
}

// TagDirs 列出 root 下两级分片中的全部标签目录名，root 不存在时返回空.
// 只返回名字满足 accept 的目录.
func TagDirs(root string, accept func(string) bool) ([]string, error) {
	pattern := filepath.Join(root, "*", "*", "*")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(matches))

	for _, m := range matches {
		tag := filepath.Base(m)
		if accept != nil && !accept(tag) {
			continue
		}

		// 目录必须位于自己的分片下
		want, err := ResolvePath(root, tag, "")
		if err != nil || want != m {
			continue
		}

		tags = append(tags, tag)
	}

	return tags, nil
}
