package xwarm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/omeyang/tiercache/pkg/config/xconf"
	"github.com/omeyang/tiercache/pkg/storage/xtier"
)

// 默认参数。
const (
	// defaultWarmThreshold 是成为预热候选所需的最低访问次数。
	defaultWarmThreshold = 3

	// defaultWarmInterval 是两次预热之间的最小间隔。
	defaultWarmInterval = 5 * time.Minute

	// defaultMaxPerCycle 是单次预热处理的候选上限。
	defaultMaxPerCycle = 10
)

// ErrNilCache 表示未提供底层缓存。
var ErrNilCache = errors.New("xwarm: nil cache")

// candidate 标识一个预热候选键。
type candidate struct {
	namespace string
	key       string
}

// Layer 是自适应保留装饰层。
// 必须通过 [New] 创建。所有方法并发安全。
type Layer struct {
	cache *xtier.Cache

	qualityBoost   bool
	frequencyBoost bool
	warmThreshold  uint64
	warmInterval   time.Duration
	maxPerCycle    int

	mu         sync.Mutex
	accesses   map[candidate]uint64
	candidates map[candidate]struct{}
	lastWarm   time.Time

	logger *slog.Logger
	now    func() time.Time
}

// Option 定义 Layer 的可选配置函数类型。
type Option func(*Layer)

// WithQualityBoost 开关质量分加成。默认开启。
func WithQualityBoost(enabled bool) Option {
	return func(l *Layer) {
		l.qualityBoost = enabled
	}
}

// WithFrequencyBoost 开关访问频次加成。默认开启。
func WithFrequencyBoost(enabled bool) Option {
	return func(l *Layer) {
		l.frequencyBoost = enabled
	}
}

// WithWarmThreshold 设置成为预热候选所需的最低访问次数。非正值将被忽略。
func WithWarmThreshold(n uint64) Option {
	return func(l *Layer) {
		if n > 0 {
			l.warmThreshold = n
		}
	}
}

// WithWarmInterval 设置两次预热之间的最小间隔。非正值将被忽略。
func WithWarmInterval(d time.Duration) Option {
	return func(l *Layer) {
		if d > 0 {
			l.warmInterval = d
		}
	}
}

// WithMaxPerCycle 设置单次预热处理的候选上限。非正值将被忽略。
func WithMaxPerCycle(n int) Option {
	return func(l *Layer) {
		if n > 0 {
			l.maxPerCycle = n
		}
	}
}

// WithLogger 设置日志器。默认 slog.Default()。
func WithLogger(log *slog.Logger) Option {
	return func(l *Layer) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithClock 注入时钟函数，用于测试。默认 time.Now。
func WithClock(now func() time.Time) Option {
	return func(l *Layer) {
		if now != nil {
			l.now = now
		}
	}
}

// New 创建自适应保留层。
func New(cache *xtier.Cache, opts ...Option) (*Layer, error) {
	if cache == nil {
		return nil, ErrNilCache
	}

	l := &Layer{
		cache:          cache,
		qualityBoost:   true,
		frequencyBoost: true,
		warmThreshold:  defaultWarmThreshold,
		warmInterval:   defaultWarmInterval,
		maxPerCycle:    defaultMaxPerCycle,
		accesses:       make(map[candidate]uint64),
		candidates:     make(map[candidate]struct{}),
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.lastWarm = l.now()
	return l, nil
}

// NewFromConfig 按配置创建自适应保留层。
func NewFromConfig(cache *xtier.Cache, cfg xconf.AdaptiveConfig, opts ...Option) (*Layer, error) {
	base := []Option{
		WithQualityBoost(cfg.QualityBoost),
		WithFrequencyBoost(cfg.FrequencyBoost),
		WithWarmInterval(time.Duration(cfg.WarmIntervalSeconds) * time.Second),
		WithMaxPerCycle(cfg.WarmMaxPerCycle),
	}
	return New(cache, append(base, opts...)...)
}

// EffectiveTTL 从基础 TTL、质量分与访问次数推导有效 TTL。
// 质量分超出 [0,1] 会被收拢到边界。两个加成独立计算、乘法叠加。
func (l *Layer) EffectiveTTL(base time.Duration, quality float64, accessCount uint64) time.Duration {
	if base <= 0 {
		base = l.cache.DefaultTTL()
	}

	ttl := float64(base)
	if l.qualityBoost {
		ttl *= clamp(1+clamp(quality, 0, 1), 1.0, 2.0)
	}
	if l.frequencyBoost {
		ttl *= clamp(1+0.1*float64(accessCount), 1.0, 3.0)
	}
	return time.Duration(ttl)
}

// SetWithQuality 以质量分推导的有效 TTL 写入值。
// 访问次数取自本层已记录的历史。
func (l *Layer) SetWithQuality(ctx context.Context, namespace, key string, value []byte, base time.Duration, quality float64, level xtier.Level) bool {
	ttl := l.EffectiveTTL(base, quality, l.accessCount(namespace, key))
	return l.cache.Set(ctx, namespace, key, value, ttl, level)
}

// Get 读取值并记录一次访问。
func (l *Layer) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	value, ok := l.cache.Get(ctx, namespace, key)
	if ok {
		l.TrackAccess(namespace, key)
	}
	return value, ok
}

// TrackAccess 记录一次访问；累计达到阈值后该键成为预热候选。
func (l *Layer) TrackAccess(namespace, key string) {
	c := candidate{namespace: namespace, key: key}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.accesses[c]++
	if l.accesses[c] >= l.warmThreshold {
		l.candidates[c] = struct{}{}
	}
}

// AccessCount 返回本层记录的访问次数。
func (l *Layer) AccessCount(namespace, key string) uint64 {
	return l.accessCount(namespace, key)
}

func (l *Layer) accessCount(namespace, key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accesses[candidate{namespace: namespace, key: key}]
}

// CandidateCount 返回当前预热候选数量。
func (l *Layer) CandidateCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.candidates)
}

// Warm 执行一次机会式预热：距上次预热不足最小间隔时为 no-op；
// 否则重读至多 maxPerCycle 个候选（迫使磁盘条目提升回内存），
// 处理过的候选被清除。返回实际重读的条目数。
func (l *Layer) Warm(ctx context.Context) int {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastWarm) < l.warmInterval {
		l.mu.Unlock()
		return 0
	}
	l.lastWarm = now

	batch := make([]candidate, 0, l.maxPerCycle)
	for c := range l.candidates {
		if len(batch) >= l.maxPerCycle {
			break
		}
		batch = append(batch, c)
		delete(l.candidates, c)
	}
	l.mu.Unlock()

	warmed := 0
	for _, c := range batch {
		if ctx.Err() != nil {
			break
		}
		if _, ok := l.cache.Get(ctx, c.namespace, c.key); ok {
			warmed++
		}
	}
	if warmed > 0 {
		l.logger.Debug("xwarm: warmed candidates",
			slog.String("cache", l.cache.Name()), slog.Int("warmed", warmed))
	}
	return warmed
}

// ResetTracking 清空访问记录与预热候选。
func (l *Layer) ResetTracking() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accesses = make(map[candidate]uint64)
	l.candidates = make(map[candidate]struct{})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
