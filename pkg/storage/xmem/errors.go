package xmem

import "errors"

var (
	// ErrInvalidBudget 表示内存预算不是正数。
	ErrInvalidBudget = errors.New("xmem: budget must be positive")

	// ErrInvalidPolicy 表示淘汰策略名未知。
	// 这是配置错误，应 fail-fast 而非静默回退到默认策略。
	ErrInvalidPolicy = errors.New("xmem: invalid eviction policy")

	// ErrEntryTooLarge 表示单个条目超过整个内存预算，无法通过淘汰腾出空间。
	ErrEntryTooLarge = errors.New("xmem: entry larger than budget")

	// ErrInvalidEntry 表示条目不满足基本约束（过期时间不晚于创建时间，或大小为负）。
	ErrInvalidEntry = errors.New("xmem: invalid entry")
)
