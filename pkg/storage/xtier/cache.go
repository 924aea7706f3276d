package xtier

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/omeyang/tiercache/pkg/config/xconf"
	"github.com/omeyang/tiercache/pkg/storage/xdisk"
	"github.com/omeyang/tiercache/pkg/storage/xmem"
	"github.com/omeyang/tiercache/pkg/util/xkey"
)

// DefaultNamespace 是未显式划分时使用的逻辑分区名。
const DefaultNamespace = xkey.DefaultNamespace

// Level 表示写入的目标层级。
type Level int

// 支持的层级。
const (
	// LevelBoth 同时写入内存层与磁盘层（默认）。
	LevelBoth Level = iota

	// LevelMemory 仅写入内存层。
	LevelMemory

	// LevelDisk 仅写入磁盘层。
	LevelDisk
)

// String 返回层级的可读表示。
func (l Level) String() string {
	switch l {
	case LevelBoth:
		return "both"
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Cache 是分层缓存门面。
// 必须通过 [New] 或 [NewFromConfig] 创建。所有方法并发安全。
type Cache struct {
	name string
	keys *xkey.Codec
	mem  *xmem.Tier
	disk *xdisk.Tier // nil 表示未启用磁盘层

	codec         Codec
	metrics       *Metrics
	defaultTTL    time.Duration
	checkInterval time.Duration
	diskMaxBytes  int64        // 0 表示不设上限
	lastSweep     atomic.Int64 // UnixNano

	logger *slog.Logger
	now    func() time.Time
}

// Option 定义 Cache 的可选配置函数类型。
type Option func(*cacheOptions)

type cacheOptions struct {
	memoryBudget  int64
	policy        xmem.Policy
	disk          *xdisk.Tier
	codec         Codec
	defaultTTL    time.Duration
	checkInterval time.Duration
	diskMaxBytes  int64
	logger        *slog.Logger
	now           func() time.Time
}

func defaultCacheOptions() *cacheOptions {
	return &cacheOptions{
		memoryBudget:  100 << 20, // 100MB
		policy:        xmem.PolicyLRU,
		codec:         JSONCodec{},
		defaultTTL:    time.Hour,
		checkInterval: time.Minute,
		logger:        slog.Default(),
		now:           time.Now,
	}
}

// WithMemoryBudget 设置内存层字节预算。非正值将被忽略。
func WithMemoryBudget(bytes int64) Option {
	return func(o *cacheOptions) {
		if bytes > 0 {
			o.memoryBudget = bytes
		}
	}
}

// WithEvictionPolicy 设置内存层淘汰策略。
// 策略合法性在 New 中统一校验（未知策略 fail-fast）。
func WithEvictionPolicy(p xmem.Policy) Option {
	return func(o *cacheOptions) {
		o.policy = p
	}
}

// WithDisk 启用磁盘层。传 nil 保持禁用。
func WithDisk(tier *xdisk.Tier) Option {
	return func(o *cacheOptions) {
		o.disk = tier
	}
}

// WithDiskMaxSize 设置磁盘占用告警阈值（字节）。
// 仅用于观测：过期扫描发现占用超限时记 Warn 日志，不做硬约束。
// 非正值将被忽略（默认不设上限）。
func WithDiskMaxSize(bytes int64) Option {
	return func(o *cacheOptions) {
		if bytes > 0 {
			o.diskMaxBytes = bytes
		}
	}
}

// WithCodec 设置 SetValue/GetValue 使用的序列化 Codec。默认 JSONCodec。
func WithCodec(c Codec) Option {
	return func(o *cacheOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithDefaultTTL 设置默认条目存活时间。非正值将被忽略。
func WithDefaultTTL(d time.Duration) Option {
	return func(o *cacheOptions) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithCheckInterval 设置过期扫描的最小间隔。非正值将被忽略。
func WithCheckInterval(d time.Duration) Option {
	return func(o *cacheOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithLogger 设置日志器。默认 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *cacheOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock 注入时钟函数，用于测试。默认 time.Now。
func WithClock(now func() time.Time) Option {
	return func(o *cacheOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// New 创建分层缓存。
func New(name string, opts ...Option) (*Cache, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	o := defaultCacheOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	keys, err := xkey.NewCodec()
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics()
	mem, err := xmem.New(o.memoryBudget, o.policy,
		xmem.WithLogger(o.logger),
		xmem.WithClock(o.now),
		xmem.WithOnEvict(func(string, xmem.Entry) { metrics.Eviction() }),
	)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		name:          name,
		keys:          keys,
		mem:           mem,
		disk:          o.disk,
		codec:         o.codec,
		metrics:       metrics,
		defaultTTL:    o.defaultTTL,
		checkInterval: o.checkInterval,
		diskMaxBytes:  o.diskMaxBytes,
		logger:        o.logger,
		now:           o.now,
	}
	c.lastSweep.Store(o.now().UnixNano())
	return c, nil
}

// NewFromConfig 按配置创建分层缓存。
// 配置应当事先通过 xconf 的 Validate 校验；此处仍会对策略名 fail-fast。
func NewFromConfig(name string, cfg xconf.CacheConfig, opts ...Option) (*Cache, error) {
	policy, err := xmem.ParsePolicy(cfg.EvictionPolicy)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithMemoryBudget(int64(cfg.MemoryBudgetMB) << 20),
		WithEvictionPolicy(policy),
		WithDefaultTTL(time.Duration(cfg.DefaultTTLSeconds) * time.Second),
		WithCheckInterval(time.Duration(cfg.CheckIntervalSeconds) * time.Second),
	}

	if cfg.DiskEnabled {
		disk, err := xdisk.New(cfg.DiskRoot, xdisk.WithCompression(cfg.DiskCompression))
		if err != nil {
			return nil, err
		}
		base = append(base, WithDisk(disk), WithDiskMaxSize(int64(cfg.DiskMaxSizeMB)<<20))
	}

	return New(name, append(base, opts...)...)
}

// Name 返回缓存实例名。
func (c *Cache) Name() string {
	return c.name
}

// DefaultTTL 返回默认条目存活时间。
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get 获取值。内存命中 → 磁盘命中（提升进内存）→ 未命中。
// 返回的字节切片归调用方所有。
func (c *Cache) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	derived, err := c.keys.Derive(namespace, key)
	if err != nil {
		return nil, false
	}

	c.maybeSweep(false)

	start := time.Now()
	defer func() {
		c.metrics.ObserveRead(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if value, ok := c.mem.Get(derived); ok {
		c.metrics.HitMemory()
		return value, true
	}

	if c.disk != nil {
		if e, ok := c.disk.Get(derived); ok {
			c.promote(derived, e)
			c.metrics.HitDisk()
			return e.Value, true
		}
	}

	c.metrics.Miss()
	return nil, false
}

// GetValue 获取值并通过 Codec 解码到 target。
// 未命中或解码失败（记错误计数）返回 false。
func (c *Cache) GetValue(ctx context.Context, namespace, key string, target any) bool {
	data, ok := c.Get(ctx, namespace, key)
	if !ok {
		return false
	}
	if err := c.codec.Unmarshal(data, target); err != nil {
		c.metrics.Error()
		c.logger.Warn("xtier: decode cached value failed",
			slog.String("cache", c.name),
			slog.String("namespace", namespace),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}
	return true
}

// Set 写入值。ttl 非正时使用默认 TTL。
// 返回写入是否成功：任一目标层成功即为 true。
// 容量不足与磁盘故障不会抛错误，只会计数、记日志并反映在返回值上。
func (c *Cache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration, level Level) bool {
	return c.set(ctx, namespace, key, value, int64(len(value)), ttl, level)
}

// SetValue 通过 Codec 编码后写入任意类型的值。
// 大小估算优先使用 [Sizeable] 能力，回退到编码后长度。
func (c *Cache) SetValue(ctx context.Context, namespace, key string, v any, ttl time.Duration, level Level) bool {
	encoded, err := c.codec.Marshal(v)
	if err != nil {
		c.metrics.Error()
		c.logger.Warn("xtier: encode value failed",
			slog.String("cache", c.name),
			slog.String("namespace", namespace),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}
	return c.set(ctx, namespace, key, encoded, EstimateSize(v, encoded), ttl, level)
}

// set 是 Set/SetValue 的公共实现。
func (c *Cache) set(ctx context.Context, namespace, key string, value []byte, size int64, ttl time.Duration, level Level) bool {
	if ctx.Err() != nil {
		return false
	}
	derived, err := c.keys.Derive(namespace, key)
	if err != nil {
		return false
	}

	c.maybeSweep(false)

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	entry := xmem.Entry{
		Value:     value,
		Namespace: namespace,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Size:      size,
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveWrite(float64(time.Since(start).Microseconds()) / 1000)
	}()

	stored := false
	if level == LevelBoth || level == LevelMemory {
		if err := c.mem.Insert(derived, entry); err != nil {
			c.logger.Warn("xtier: memory insert rejected",
				slog.String("cache", c.name),
				slog.String("namespace", namespace),
				slog.String("key", key),
				slog.Any("error", err))
		} else {
			stored = true
		}
	}
	if (level == LevelBoth || level == LevelDisk) && c.disk != nil {
		if err := c.disk.Put(derived, xdisk.Entry{
			Value:     value,
			Namespace: namespace,
			CreatedAt: entry.CreatedAt,
			ExpiresAt: entry.ExpiresAt,
			Size:      size,
		}); err != nil {
			c.metrics.Error()
			c.logger.Warn("xtier: disk put failed",
				slog.String("cache", c.name),
				slog.String("namespace", namespace),
				slog.String("key", key),
				slog.Any("error", err))
		} else {
			stored = true
		}
	}
	return stored
}

// Delete 删除两层中的条目。返回是否有任一层存在该键。
func (c *Cache) Delete(ctx context.Context, namespace, key string) bool {
	if ctx.Err() != nil {
		return false
	}
	derived, err := c.keys.Derive(namespace, key)
	if err != nil {
		return false
	}

	removed := c.mem.Remove(derived)
	if c.disk != nil {
		if c.disk.Remove(derived) {
			removed = true
		}
	}
	return removed
}

// Exists 报告键是否存在于任一层且未过期。不更新访问统计。
func (c *Cache) Exists(ctx context.Context, namespace, key string) bool {
	if ctx.Err() != nil {
		return false
	}
	derived, err := c.keys.Derive(namespace, key)
	if err != nil {
		return false
	}

	if c.mem.Contains(derived) {
		return true
	}
	return c.disk != nil && c.disk.Exists(derived)
}

// Clear 清空指定 namespace；namespace 为空串时清空所有分区。
// 返回删除的条目总数（两层合计）。
func (c *Cache) Clear(ctx context.Context, namespace string) int {
	if ctx.Err() != nil {
		return 0
	}

	removed := c.mem.Clear(namespace)
	if c.disk != nil {
		n, err := c.disk.Clear(namespace)
		if err != nil {
			c.metrics.Error()
			c.logger.Warn("xtier: disk clear failed",
				slog.String("cache", c.name),
				slog.String("namespace", namespace),
				slog.Any("error", err))
		}
		removed += n
	}
	return removed
}

// RefreshTTL 以新的 TTL 重写条目的过期时间（读取后原值回写）。
// ttl 非正时使用默认 TTL。键不存在时为 no-op，返回 false。
func (c *Cache) RefreshTTL(ctx context.Context, namespace, key string, ttl time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	derived, err := c.keys.Derive(namespace, key)
	if err != nil {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.now()
	expiresAt := now.Add(ttl)

	refreshed := false
	if e, ok := c.mem.Peek(derived); ok {
		e.ExpiresAt = expiresAt
		if err := c.mem.Insert(derived, e); err == nil {
			refreshed = true
		}
	}
	if c.disk != nil {
		if e, ok := c.disk.Get(derived); ok {
			e.ExpiresAt = expiresAt
			if err := c.disk.Put(derived, e); err != nil {
				c.metrics.Error()
			} else {
				refreshed = true
			}
		}
	}
	return refreshed
}

// AccessInfo 返回键在内存层的访问统计，供自适应保留层查询。
func (c *Cache) AccessInfo(namespace, key string) (xmem.AccessInfo, bool) {
	derived, err := c.keys.Derive(namespace, key)
	if err != nil {
		return xmem.AccessInfo{}, false
	}
	return c.mem.Access(derived)
}

// Metrics 返回指标快照（含条目数与字节占用）。
func (c *Cache) Metrics() Snapshot {
	s := c.metrics.snapshot()
	s.TotalItems = int64(c.mem.Len())
	s.MemoryBytes = c.mem.UsedBytes()

	if c.disk != nil {
		ds, err := c.disk.Stats()
		if err != nil {
			c.logger.Warn("xtier: disk stats failed",
				slog.String("cache", c.name), slog.Any("error", err))
		} else {
			s.TotalItems += ds.Files
			s.DiskBytes = ds.Bytes
		}
	}
	return s
}

// ResetMetrics 清零指标。仅供运维显式调用。
func (c *Cache) ResetMetrics() {
	c.metrics.Reset()
}

// FlushToDisk 将内存层所有未过期条目批量落盘，返回写入数量。
// 用于进程关停时保留驻留集（驻留集受内存预算约束，全量快照可接受）。
// 未启用磁盘层时返回 ErrDiskDisabled。
func (c *Cache) FlushToDisk(ctx context.Context) (int, error) {
	if c.disk == nil {
		return 0, ErrDiskDisabled
	}

	flushed := 0
	for _, ke := range c.mem.Dump() {
		if ctx.Err() != nil {
			return flushed, ctx.Err()
		}
		err := c.disk.Put(ke.Key, xdisk.Entry{
			Value:     ke.Entry.Value,
			Namespace: ke.Entry.Namespace,
			CreatedAt: ke.Entry.CreatedAt,
			ExpiresAt: ke.Entry.ExpiresAt,
			Size:      ke.Entry.Size,
		})
		if err != nil {
			c.metrics.Error()
			c.logger.Warn("xtier: flush entry failed",
				slog.String("cache", c.name),
				slog.String("key", ke.Key),
				slog.Any("error", err))
			continue
		}
		flushed++
	}
	return flushed, nil
}

// promote 将磁盘命中条目按原有过期时间提升进内存层。
// 提升失败（如条目超过内存预算）只记日志，不影响本次读取。
func (c *Cache) promote(derived string, e xdisk.Entry) {
	err := c.mem.Insert(derived, xmem.Entry{
		Value:     e.Value,
		Namespace: e.Namespace,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		Size:      e.Size,
	})
	if err != nil {
		c.logger.Debug("xtier: promote skipped",
			slog.String("cache", c.name),
			slog.String("key", derived),
			slog.Any("error", err))
	}
}
