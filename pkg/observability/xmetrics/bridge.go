package xmetrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/tiercache/pkg/storage/xtier"
)

const (
	defaultInstrumentationName = "github.com/omeyang/tiercache/xmetrics"

	metricHits        = "tiercache.cache.hits"
	metricMisses      = "tiercache.cache.misses"
	metricMemoryHits  = "tiercache.cache.memory_hits"
	metricDiskHits    = "tiercache.cache.disk_hits"
	metricEvictions   = "tiercache.cache.evictions"
	metricErrors      = "tiercache.cache.errors"
	metricItems       = "tiercache.cache.items"
	metricMemoryBytes = "tiercache.cache.memory_bytes"
	metricDiskBytes   = "tiercache.cache.disk_bytes"
	metricHitRatio    = "tiercache.cache.hit_ratio"
	metricAvgReadMs   = "tiercache.cache.avg_read_ms"
	metricAvgWriteMs  = "tiercache.cache.avg_write_ms"
)

// ErrNilSnapshotFunc 表示未提供快照函数。
var ErrNilSnapshotFunc = errors.New("xmetrics: nil snapshot func")

// SnapshotFunc 返回缓存的当前指标快照，通常绑定 (*xtier.Cache).Metrics。
type SnapshotFunc func() xtier.Snapshot

type bridgeConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
}

// Option 定义 Bridge 的配置选项。
type Option func(*bridgeConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *bridgeConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider。默认取全局 provider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *bridgeConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// Bridge 把单个缓存实例的指标暴露为 OTel 可观测仪表。
// 必须通过 [NewBridge] 创建；不再使用时调用 Close 注销。
type Bridge struct {
	registration metric.Registration
}

// NewBridge 为名为 cacheName 的缓存注册可观测仪表。
// 所有数据点都带 cache 属性，便于多实例区分。
func NewBridge(cacheName string, fn SnapshotFunc, opts ...Option) (*Bridge, error) {
	if fn == nil {
		return nil, ErrNilSnapshotFunc
	}

	cfg := &bridgeConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	hits, err := meter.Int64ObservableCounter(metricHits,
		metric.WithDescription("累计缓存命中次数"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricHits, err)
	}
	misses, err := meter.Int64ObservableCounter(metricMisses,
		metric.WithDescription("累计缓存未命中次数"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricMisses, err)
	}
	memoryHits, err := meter.Int64ObservableCounter(metricMemoryHits,
		metric.WithDescription("累计内存层命中次数"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricMemoryHits, err)
	}
	diskHits, err := meter.Int64ObservableCounter(metricDiskHits,
		metric.WithDescription("累计磁盘层命中次数"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricDiskHits, err)
	}
	evictions, err := meter.Int64ObservableCounter(metricEvictions,
		metric.WithDescription("累计淘汰条目数"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricEvictions, err)
	}
	storageErrors, err := meter.Int64ObservableCounter(metricErrors,
		metric.WithDescription("累计存储错误次数"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricErrors, err)
	}
	items, err := meter.Int64ObservableGauge(metricItems,
		metric.WithDescription("当前条目总数（两层合计）"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricItems, err)
	}
	memoryBytes, err := meter.Int64ObservableGauge(metricMemoryBytes,
		metric.WithDescription("内存层占用字节数"), metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricMemoryBytes, err)
	}
	diskBytes, err := meter.Int64ObservableGauge(metricDiskBytes,
		metric.WithDescription("磁盘层占用字节数"), metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricDiskBytes, err)
	}
	hitRatio, err := meter.Float64ObservableGauge(metricHitRatio,
		metric.WithDescription("命中率 hits/(hits+misses)"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricHitRatio, err)
	}
	avgRead, err := meter.Float64ObservableGauge(metricAvgReadMs,
		metric.WithDescription("滚动窗口平均读延迟"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricAvgReadMs, err)
	}
	avgWrite, err := meter.Float64ObservableGauge(metricAvgWriteMs,
		metric.WithDescription("滚动窗口平均写延迟"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("xmetrics: create %s: %w", metricAvgWriteMs, err)
	}

	attrs := metric.WithAttributes(attribute.String("cache", cacheName))
	registration, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			s := fn()
			o.ObserveInt64(hits, int64(s.Hits), attrs)
			o.ObserveInt64(misses, int64(s.Misses), attrs)
			o.ObserveInt64(memoryHits, int64(s.MemoryHits), attrs)
			o.ObserveInt64(diskHits, int64(s.DiskHits), attrs)
			o.ObserveInt64(evictions, int64(s.Evictions), attrs)
			o.ObserveInt64(storageErrors, int64(s.Errors), attrs)
			o.ObserveInt64(items, s.TotalItems, attrs)
			o.ObserveInt64(memoryBytes, s.MemoryBytes, attrs)
			o.ObserveInt64(diskBytes, s.DiskBytes, attrs)
			o.ObserveFloat64(hitRatio, s.HitRatio, attrs)
			o.ObserveFloat64(avgRead, s.AvgReadMs, attrs)
			o.ObserveFloat64(avgWrite, s.AvgWriteMs, attrs)
			return nil
		},
		hits, misses, memoryHits, diskHits, evictions, storageErrors,
		items, memoryBytes, diskBytes, hitRatio, avgRead, avgWrite,
	)
	if err != nil {
		return nil, fmt.Errorf("xmetrics: register callback: %w", err)
	}

	return &Bridge{registration: registration}, nil
}

// Close 注销回调。幂等性由 OTel SDK 保证。
func (b *Bridge) Close() error {
	if err := b.registration.Unregister(); err != nil {
		return fmt.Errorf("xmetrics: unregister: %w", err)
	}
	return nil
}
