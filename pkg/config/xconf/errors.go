package xconf

import "errors"

var (
	// ErrEmptyPath 表示配置文件路径为空。
	ErrEmptyPath = errors.New("xconf: empty config path")

	// ErrUnsupportedFormat 表示配置格式不受支持。
	ErrUnsupportedFormat = errors.New("xconf: unsupported format")

	// ErrLoadFailed 表示读取配置文件失败。
	ErrLoadFailed = errors.New("xconf: load failed")

	// ErrParseFailed 表示解析配置内容失败。
	ErrParseFailed = errors.New("xconf: parse failed")

	// ErrUnmarshalFailed 表示反序列化到目标结构体失败。
	ErrUnmarshalFailed = errors.New("xconf: unmarshal failed")

	// ErrInvalidConfig 表示配置值不满足约束。
	// 这是配置错误，应在启动阶段 fail-fast，不应被静默忽略。
	ErrInvalidConfig = errors.New("xconf: invalid config")

	// ErrNotWatchable 表示配置不是从文件加载的，无法监视变更。
	ErrNotWatchable = errors.New("xconf: config not loaded from file")
)
