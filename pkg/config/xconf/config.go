package xconf

import (
	"fmt"
	"runtime"

	"github.com/omeyang/tiercache/pkg/storage/xmem"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Config 是 tiercache 的顶层配置。
type Config struct {
	// Cache 分层缓存配置。
	Cache CacheConfig `koanf:"cache"`

	// Pipeline 批处理流水线配置。
	Pipeline PipelineConfig `koanf:"pipeline"`

	// Adaptive 自适应保留层配置。
	Adaptive AdaptiveConfig `koanf:"adaptive"`
}

// CacheConfig 定义分层缓存的配置。
type CacheConfig struct {
	// MemoryBudgetMB 内存层字节预算（MB）。
	MemoryBudgetMB int `koanf:"memory_budget_mb"`

	// EvictionPolicy 淘汰策略名：lru / lfu / fifo。
	EvictionPolicy string `koanf:"eviction_policy"`

	// DiskEnabled 是否启用磁盘层。
	DiskEnabled bool `koanf:"disk_enabled"`

	// DiskRoot 磁盘缓存根目录。DiskEnabled 为 true 时必填。
	DiskRoot string `koanf:"disk_root"`

	// DiskMaxSizeMB 磁盘缓存大小上限（MB），仅用于统计告警，不做硬约束。
	DiskMaxSizeMB int `koanf:"disk_max_size_mb"`

	// DiskCompression 是否对磁盘条目做 s2 压缩。
	DiskCompression bool `koanf:"disk_compression"`

	// DefaultTTLSeconds 默认条目存活时间（秒）。
	DefaultTTLSeconds int `koanf:"default_ttl_seconds"`

	// CheckIntervalSeconds 过期扫描的最小间隔（秒）。
	CheckIntervalSeconds int `koanf:"check_interval_seconds"`
}

// PipelineConfig 定义批处理流水线的配置。
type PipelineConfig struct {
	// MaxConsecutiveErrors 连续失败多少次后熔断。
	MaxConsecutiveErrors int `koanf:"max_consecutive_errors"`

	// CircuitBreakTTLSeconds 熔断后的冷却时间（秒）。
	CircuitBreakTTLSeconds int `koanf:"circuit_break_ttl_seconds"`

	// BatchSize 触发并行分批的行数阈值，同时也是每批的行数。
	BatchSize int `koanf:"batch_size"`

	// MaxWorkers 并行执行的最大 worker 数。0 表示按 CPU 并行度取默认。
	MaxWorkers int `koanf:"max_workers"`

	// CacheEnabled 是否缓存流水线结果。
	CacheEnabled bool `koanf:"cache_enabled"`

	// CacheTTLSeconds 流水线结果的缓存存活时间（秒）。
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`
}

// AdaptiveConfig 定义自适应保留层的配置。
type AdaptiveConfig struct {
	// QualityBoost 是否启用按质量分数延长 TTL。
	QualityBoost bool `koanf:"quality_boost"`

	// FrequencyBoost 是否启用按访问频率延长 TTL。
	FrequencyBoost bool `koanf:"frequency_boost"`

	// WarmIntervalSeconds 缓存预热周期（秒）。
	WarmIntervalSeconds int `koanf:"warm_interval_seconds"`

	// WarmMaxPerCycle 每个预热周期最多处理的候选数。
	WarmMaxPerCycle int `koanf:"warm_max_per_cycle"`
}

// Defaults 返回带默认值的配置。
func Defaults() Config {
	return Config{
		Cache: CacheConfig{
			MemoryBudgetMB:       100,
			EvictionPolicy:       string(xmem.PolicyLRU),
			DiskEnabled:          true,
			DiskRoot:             "cache",
			DiskMaxSizeMB:        1024,
			DiskCompression:      true,
			DefaultTTLSeconds:    3600,
			CheckIntervalSeconds: 60,
		},
		Pipeline: PipelineConfig{
			MaxConsecutiveErrors:   3,
			CircuitBreakTTLSeconds: 300,
			BatchSize:              1000,
			MaxWorkers:             runtime.NumCPU(),
			CacheEnabled:           true,
			CacheTTLSeconds:        1800,
		},
		Adaptive: AdaptiveConfig{
			QualityBoost:        true,
			FrequencyBoost:      true,
			WarmIntervalSeconds: 300,
			WarmMaxPerCycle:     10,
		},
	}
}

// Validate 校验配置约束。
// 未知淘汰策略等配置错误在此 fail-fast，绝不静默回退。
func (c *Config) Validate() error {
	if c.Cache.MemoryBudgetMB <= 0 {
		return fmt.Errorf("%w: cache.memory_budget_mb must be positive, got %d",
			ErrInvalidConfig, c.Cache.MemoryBudgetMB)
	}
	if _, err := xmem.ParsePolicy(c.Cache.EvictionPolicy); err != nil {
		return fmt.Errorf("%w: cache.eviction_policy: %w", ErrInvalidConfig, err)
	}
	if c.Cache.DiskEnabled && c.Cache.DiskRoot == "" {
		return fmt.Errorf("%w: cache.disk_root required when disk is enabled", ErrInvalidConfig)
	}
	if c.Cache.DefaultTTLSeconds <= 0 {
		return fmt.Errorf("%w: cache.default_ttl_seconds must be positive, got %d",
			ErrInvalidConfig, c.Cache.DefaultTTLSeconds)
	}
	if c.Cache.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("%w: cache.check_interval_seconds must be positive, got %d",
			ErrInvalidConfig, c.Cache.CheckIntervalSeconds)
	}
	if c.Pipeline.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("%w: pipeline.max_consecutive_errors must be positive, got %d",
			ErrInvalidConfig, c.Pipeline.MaxConsecutiveErrors)
	}
	if c.Pipeline.CircuitBreakTTLSeconds <= 0 {
		return fmt.Errorf("%w: pipeline.circuit_break_ttl_seconds must be positive, got %d",
			ErrInvalidConfig, c.Pipeline.CircuitBreakTTLSeconds)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("%w: pipeline.batch_size must be positive, got %d",
			ErrInvalidConfig, c.Pipeline.BatchSize)
	}
	if c.Pipeline.MaxWorkers < 0 {
		return fmt.Errorf("%w: pipeline.max_workers must not be negative, got %d",
			ErrInvalidConfig, c.Pipeline.MaxWorkers)
	}
	if c.Adaptive.WarmIntervalSeconds < 0 {
		return fmt.Errorf("%w: adaptive.warm_interval_seconds must not be negative, got %d",
			ErrInvalidConfig, c.Adaptive.WarmIntervalSeconds)
	}
	if c.Adaptive.WarmMaxPerCycle < 0 {
		return fmt.Errorf("%w: adaptive.warm_max_per_cycle must not be negative, got %d",
			ErrInvalidConfig, c.Adaptive.WarmMaxPerCycle)
	}
	return nil
}
