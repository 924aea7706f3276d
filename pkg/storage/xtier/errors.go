package xtier

import "errors"

var (
	// ErrEmptyName 表示缓存实例名为空。
	ErrEmptyName = errors.New("xtier: empty cache name")

	// ErrCacheExists 表示注册表中已存在同名缓存。
	ErrCacheExists = errors.New("xtier: cache already registered")

	// ErrCacheNotFound 表示注册表中不存在该名称的缓存。
	ErrCacheNotFound = errors.New("xtier: cache not found")

	// ErrRegistryClosed 表示注册表已关闭。
	ErrRegistryClosed = errors.New("xtier: registry closed")

	// ErrJanitorRunning 表示后台清理任务已在运行。
	ErrJanitorRunning = errors.New("xtier: janitor already running")

	// ErrDiskDisabled 表示该缓存未启用磁盘层。
	ErrDiskDisabled = errors.New("xtier: disk tier disabled")
)
