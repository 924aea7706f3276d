package xdisk

import "errors"

var (
	// ErrEmptyRoot 表示缓存根目录为空字符串。
	ErrEmptyRoot = errors.New("xdisk: empty root directory")

	// ErrEmptyKey 表示传入的缓存键为空字符串。
	ErrEmptyKey = errors.New("xdisk: empty key")

	// ErrInvalidKey 表示缓存键含有路径分隔符等非法字符或长度不足。
	// 本层的键应当来自 xkey 派生的定宽十六进制摘要。
	ErrInvalidKey = errors.New("xdisk: invalid key")

	// ErrInvalidEntry 表示条目不满足基本约束（过期时间不晚于创建时间，或大小为负）。
	ErrInvalidEntry = errors.New("xdisk: invalid entry")

	// errBadRecord 表示记录格式不合法（魔数/版本/载荷）。
	// 仅在包内使用：格式错误对调用方表现为缓存未命中，不对外暴露。
	errBadRecord = errors.New("xdisk: malformed record")
)
