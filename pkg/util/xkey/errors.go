package xkey

import "errors"

var (
	// ErrEmptyKey 表示传入的逻辑 key 为空字符串。
	// 空 key 几乎总是调用方的使用错误，应在入口处 fail-fast。
	ErrEmptyKey = errors.New("xkey: empty key")

	// ErrEmptyNamespace 表示传入的 namespace 为空字符串。
	// 调用方应显式使用 DefaultNamespace 而非空字符串。
	ErrEmptyNamespace = errors.New("xkey: empty namespace")
)
