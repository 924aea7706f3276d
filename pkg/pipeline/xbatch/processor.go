package xbatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/tiercache/pkg/config/xconf"
	"github.com/omeyang/tiercache/pkg/pipeline/xtable"
	"github.com/omeyang/tiercache/pkg/storage/xtier"
)

// 默认参数。
const (
	defaultMaxErrors = 3
	defaultCooldown  = 5 * time.Minute
	defaultBatchSize = 1000
	defaultCacheTTL  = 30 * time.Minute

	// cacheNamespace 是管道结果在分层缓存中的逻辑分区。
	cacheNamespace = "pipeline"
)

// Stats 是处理器的累计统计。
type Stats struct {
	Processed  uint64 `json:"processed"`
	Failures   uint64 `json:"failures"`
	Rejections uint64 `json:"rejections"`
	CacheHits  uint64 `json:"cache_hits"`
}

// Processor 是批处理管道处理器。
// 必须通过 [New] 或 [NewFromConfig] 创建。所有方法并发安全。
type Processor struct {
	opsMu sync.RWMutex
	ops   map[string]Operation

	cache        *xtier.Cache // nil 表示不记忆化
	cacheEnabled bool
	cacheTTL     time.Duration

	batchSize  int
	maxWorkers int

	breaker *gobreaker.CircuitBreaker[*xtable.Table]
	logger  *slog.Logger

	processed  atomic.Uint64
	failures   atomic.Uint64
	rejections atomic.Uint64
	cacheHits  atomic.Uint64
}

// Option 定义 Processor 的可选配置函数类型。
type Option func(*procOptions)

type procOptions struct {
	cache      *xtier.Cache
	cacheTTL   time.Duration
	maxErrors  uint32
	cooldown   time.Duration
	batchSize  int
	maxWorkers int
	logger     *slog.Logger
}

func defaultProcOptions() *procOptions {
	return &procOptions{
		cacheTTL:   defaultCacheTTL,
		maxErrors:  defaultMaxErrors,
		cooldown:   defaultCooldown,
		batchSize:  defaultBatchSize,
		maxWorkers: runtime.NumCPU(),
		logger:     slog.Default(),
	}
}

// WithCache 启用结果记忆化。传 nil 保持禁用。
func WithCache(c *xtier.Cache) Option {
	return func(o *procOptions) {
		o.cache = c
	}
}

// WithCacheTTL 设置记忆化结果的存活时间。非正值将被忽略。
func WithCacheTTL(d time.Duration) Option {
	return func(o *procOptions) {
		if d > 0 {
			o.cacheTTL = d
		}
	}
}

// WithMaxErrors 设置触发熔断的连续失败次数。零值将被忽略。
func WithMaxErrors(n uint32) Option {
	return func(o *procOptions) {
		if n > 0 {
			o.maxErrors = n
		}
	}
}

// WithCooldown 设置熔断后的冷却时间。非正值将被忽略。
func WithCooldown(d time.Duration) Option {
	return func(o *procOptions) {
		if d > 0 {
			o.cooldown = d
		}
	}
}

// WithBatchSize 设置触发并行分批的行数阈值（同时是每批行数）。非正值将被忽略。
func WithBatchSize(n int) Option {
	return func(o *procOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxWorkers 设置并行执行的最大 worker 数。非正值将被忽略。
func WithMaxWorkers(n int) Option {
	return func(o *procOptions) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithLogger 设置日志器。默认 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *procOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// New 创建处理器并注册内置操作词汇表。
func New(opts ...Option) (*Processor, error) {
	o := defaultProcOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	maxErrors := o.maxErrors
	p := &Processor{
		ops:          make(map[string]Operation),
		cache:        o.cache,
		cacheEnabled: o.cache != nil,
		cacheTTL:     o.cacheTTL,
		batchSize:    o.batchSize,
		maxWorkers:   o.maxWorkers,
		logger:       o.logger,
		breaker: gobreaker.NewCircuitBreaker[*xtable.Table](gobreaker.Settings{
			Name:        "xbatch",
			MaxRequests: 1, // 冷却结束后放行一个探测请求
			Timeout:     o.cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxErrors
			},
		}),
	}

	for _, op := range builtinOperations() {
		if err := p.Register(op); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewFromConfig 按配置创建处理器。
func NewFromConfig(cfg xconf.PipelineConfig, cache *xtier.Cache, opts ...Option) (*Processor, error) {
	base := []Option{
		WithMaxErrors(uint32(max(cfg.MaxConsecutiveErrors, 0))),
		WithCooldown(time.Duration(cfg.CircuitBreakTTLSeconds) * time.Second),
		WithBatchSize(cfg.BatchSize),
		WithMaxWorkers(cfg.MaxWorkers),
		WithCacheTTL(time.Duration(cfg.CacheTTLSeconds) * time.Second),
	}
	if cfg.CacheEnabled && cache != nil {
		base = append(base, WithCache(cache))
	}
	return New(append(base, opts...)...)
}

// Register 注册自定义操作。同名操作重复注册返回 ErrOperationExists。
func (p *Processor) Register(op Operation) error {
	if op == nil || op.Name() == "" {
		return fmt.Errorf("%w: empty name", ErrBadParam)
	}

	p.opsMu.Lock()
	defer p.opsMu.Unlock()

	if _, ok := p.ops[op.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrOperationExists, op.Name())
	}
	p.ops[op.Name()] = op
	return nil
}

// lookup 按名称查找已注册操作。
func (p *Processor) lookup(name string) (Operation, bool) {
	p.opsMu.RLock()
	defer p.opsMu.RUnlock()
	op, ok := p.ops[name]
	return op, ok
}

// Operations 返回已注册操作名的有序列表。
func (p *Processor) Operations() []string {
	p.opsMu.RLock()
	names := make([]string, 0, len(p.ops))
	for name := range p.ops {
		names = append(names, name)
	}
	p.opsMu.RUnlock()

	sort.Strings(names)
	return names
}

// Process 执行一次表格变换。
//
// 执行顺序：熔断器打开时以 [ErrCircuitOpen] 快速失败（缓存也不查，
// 拒绝必须对调用方可见）→ 解析操作（未知操作 fail-fast）→
// 查记忆化缓存 → 经熔断器执行（必要时并行分批）→ 成功则回填缓存。
// 操作自身的失败原样上抛并计入熔断器。
func (p *Processor) Process(ctx context.Context, data *xtable.Table, operation string, params Params) (*xtable.Table, error) {
	if data == nil {
		return nil, ErrNilTable
	}
	if p.breaker.State() == gobreaker.StateOpen {
		p.rejections.Add(1)
		return nil, newRejectionError(gobreaker.ErrOpenState)
	}
	op, ok := p.lookup(operation)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)",
			ErrUnknownOperation, operation, strings.Join(p.Operations(), ", "))
	}

	var cacheKey string
	if p.cacheEnabled {
		cacheKey = p.deriveCacheKey(data, operation, params)
		if cached, ok := p.lookupCached(ctx, cacheKey); ok {
			p.cacheHits.Add(1)
			return cached, nil
		}
	}

	start := time.Now()
	result, err := p.breaker.Execute(func() (*xtable.Table, error) {
		return p.runBatched(ctx, op, data, params)
	})
	if err != nil {
		if IsCircuitOpen(err) {
			p.rejections.Add(1)
			return nil, newRejectionError(err)
		}
		p.failures.Add(1)
		return nil, fmt.Errorf("xbatch: %s: %w", operation, err)
	}

	p.processed.Add(1)
	p.logger.Debug("xbatch: processed",
		slog.String("operation", operation),
		slog.Int("rows_in", data.NumRows()),
		slog.Int("rows_out", result.NumRows()),
		slog.Duration("elapsed", time.Since(start)))

	if p.cacheEnabled {
		p.storeCached(ctx, cacheKey, result)
	}
	return result, nil
}

// Stats 返回累计统计快照。
func (p *Processor) Stats() Stats {
	return Stats{
		Processed:  p.processed.Load(),
		Failures:   p.failures.Load(),
		Rejections: p.rejections.Load(),
		CacheHits:  p.cacheHits.Load(),
	}
}

// BreakerState 返回熔断器当前状态名（closed / half-open / open）。
func (p *Processor) BreakerState() string {
	return p.breaker.State().String()
}

// deriveCacheKey 从 (数据指纹, 操作名, 规范化参数) 推导缓存键。
// 三者任一变化都会改变键；参数按键名排序后哈希，表格型参数以指纹参与。
func (p *Processor) deriveCacheKey(data *xtable.Table, operation string, params Params) string {
	d := xxhash.New()
	_, _ = d.WriteString(data.Fingerprint())
	_, _ = d.WriteString("\x1f")
	_, _ = d.WriteString(operation)
	_, _ = d.WriteString("\x1f")

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(canonicalParam(params[k]))
		_, _ = d.WriteString("\x1f")
	}
	return fmt.Sprintf("%s-%016x", operation, d.Sum64())
}

// canonicalParam 返回参数值的确定性字节表示。
func canonicalParam(v any) string {
	if t, ok := v.(*xtable.Table); ok && t != nil {
		return "table:" + t.Fingerprint()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("!%T", v)
	}
	return string(b)
}

// lookupCached 查记忆化缓存。解码失败视为未命中（缓存层故障降级）。
func (p *Processor) lookupCached(ctx context.Context, key string) (*xtable.Table, bool) {
	data, ok := p.cache.Get(ctx, cacheNamespace, key)
	if !ok {
		return nil, false
	}
	t, err := xtable.Decode(data)
	if err != nil {
		p.logger.Warn("xbatch: cached result undecodable",
			slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return t, true
}

// storeCached 回填记忆化缓存。失败只记日志，不影响本次结果。
func (p *Processor) storeCached(ctx context.Context, key string, result *xtable.Table) {
	encoded, err := result.Encode()
	if err != nil {
		p.logger.Warn("xbatch: encode result failed",
			slog.String("key", key), slog.Any("error", err))
		return
	}
	if !p.cache.Set(ctx, cacheNamespace, key, encoded, p.cacheTTL, xtier.LevelBoth) {
		p.logger.Warn("xbatch: cache result rejected", slog.String("key", key))
	}
}
