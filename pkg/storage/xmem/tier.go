package xmem

import (
	"bytes"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry 表示一条内存缓存条目。
// Value 在写入和读取时都会复制，调用方与缓存之间不共享底层数组。
type Entry struct {
	// Value 条目值（不透明字节）。
	Value []byte

	// Namespace 条目所属的逻辑分区。
	Namespace string

	// CreatedAt 条目创建时间。
	CreatedAt time.Time

	// ExpiresAt 条目过期时间，必须晚于 CreatedAt。
	ExpiresAt time.Time

	// Size 条目占用的估算字节数，必须非负。
	Size int64
}

// AccessInfo 表示一个 key 的访问统计。
type AccessInfo struct {
	// LastAccess 最近一次 Get 命中的时间。
	LastAccess time.Time

	// Frequency 累计访问次数。
	Frequency uint64
}

// KeyedEntry 表示带 key 的条目快照，用于批量导出（如关停时落盘）。
type KeyedEntry struct {
	Key   string
	Entry Entry
}

// resident 是条目的驻留包装，seq 为单调递增的插入序号（FIFO 平局裁决）。
type resident struct {
	entry Entry
	seq   uint64
}

// Tier 是带字节预算的内存缓存层。
// 必须通过 [New] 创建，零值不可用。所有方法并发安全。
type Tier struct {
	mu      sync.Mutex
	budget  int64
	used    int64
	policy  Policy
	entries map[string]*resident
	access  map[string]*AccessInfo
	nextSeq uint64

	onEvict func(key string, e Entry)
	logger  *slog.Logger
	now     func() time.Time
}

// Option 定义 Tier 的可选配置函数类型。
type Option func(*Tier)

// WithOnEvict 设置条目被淘汰时的回调（用于指标上报）。
//
// 回调在 Tier 的互斥锁内同步执行。调用方必须遵守以下约束：
//   - 严禁在回调中调用 Tier 自身的任何方法，否则会死锁
//   - 应避免耗时操作，以免阻塞其他并发操作
func WithOnEvict(fn func(key string, e Entry)) Option {
	return func(t *Tier) {
		t.onEvict = fn
	}
}

// WithLogger 设置日志器。默认使用 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(t *Tier) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock 注入时钟函数，用于测试。默认 time.Now。
func WithClock(now func() time.Time) Option {
	return func(t *Tier) {
		if now != nil {
			t.now = now
		}
	}
}

// New 创建内存缓存层。
// budget 为最大占用字节数，必须为正；policy 必须是已知策略。
func New(budget int64, policy Policy, opts ...Option) (*Tier, error) {
	if budget <= 0 {
		return nil, ErrInvalidBudget
	}
	if !policy.valid() {
		return nil, ErrInvalidPolicy
	}

	t := &Tier{
		budget:  budget,
		policy:  policy,
		entries: make(map[string]*resident),
		access:  make(map[string]*AccessInfo),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Get 获取条目值。
// 未命中或已过期返回 (nil, false)；过期条目就地删除（惰性过期）。
// 命中时更新访问统计并返回值的副本。
func (t *Tier) Get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, ok := t.entries[key]
	if !ok {
		return nil, false
	}

	now := t.now()
	if !res.entry.ExpiresAt.After(now) {
		t.removeLocked(key)
		return nil, false
	}

	t.touchLocked(key, now)
	return bytes.Clone(res.entry.Value), true
}

// Peek 获取条目的完整副本，不更新访问统计。
// 已过期的条目同样返回 (Entry{}, false)，但不触发删除。
func (t *Tier) Peek(key string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, ok := t.entries[key]
	if !ok || !res.entry.ExpiresAt.After(t.now()) {
		return Entry{}, false
	}

	e := res.entry
	e.Value = bytes.Clone(e.Value)
	return e, true
}

// Contains 报告 key 是否存在且未过期，不更新访问统计。
func (t *Tier) Contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, ok := t.entries[key]
	return ok && res.entry.ExpiresAt.After(t.now())
}

// Insert 写入条目。
// 如果剩余空间不足，先按策略淘汰直到可容纳新条目；
// 单条目超过整个预算时返回 ErrEntryTooLarge，不做任何淘汰。
// key 已存在时覆盖旧条目（访问统计保留）。
func (t *Tier) Insert(key string, e Entry) error {
	if e.Size < 0 || !e.ExpiresAt.After(e.CreatedAt) {
		return ErrInvalidEntry
	}
	if e.Size > t.budget {
		return ErrEntryTooLarge
	}

	e.Value = bytes.Clone(e.Value)

	t.mu.Lock()
	defer t.mu.Unlock()

	// 覆盖写：先移除旧条目的占用，访问统计保留
	if old, ok := t.entries[key]; ok {
		t.used -= old.entry.Size
		delete(t.entries, key)
	}

	t.evictForLocked(e.Size)

	t.nextSeq++
	t.entries[key] = &resident{entry: e, seq: t.nextSeq}
	t.used += e.Size
	return nil
}

// Remove 删除条目及其访问统计。返回 key 是否存在。
func (t *Tier) Remove(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[key]
	if ok {
		t.removeLocked(key)
	}
	return ok
}

// Sweep 删除所有在 now 时刻已过期的条目，返回删除数量。
func (t *Tier) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, res := range t.entries {
		if !res.entry.ExpiresAt.After(now) {
			t.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Clear 删除指定 namespace 的所有条目；namespace 为空串时清空整层。
// 返回删除数量。
func (t *Tier) Clear(namespace string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, res := range t.entries {
		if namespace == "" || res.entry.Namespace == namespace {
			t.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Access 返回 key 的访问统计。key 从未被命中过时返回 (AccessInfo{}, false)。
func (t *Tier) Access(key string) (AccessInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.access[key]
	if !ok {
		return AccessInfo{}, false
	}
	return *a, true
}

// Dump 返回所有未过期条目的快照（值为副本），用于关停时批量落盘。
// 驻留集受内存预算约束，一次性全量导出是可接受的。
func (t *Tier) Dump() []KeyedEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make([]KeyedEntry, 0, len(t.entries))
	for key, res := range t.entries {
		if !res.entry.ExpiresAt.After(now) {
			continue
		}
		e := res.entry
		e.Value = bytes.Clone(e.Value)
		out = append(out, KeyedEntry{Key: key, Entry: e})
	}
	return out
}

// Len 返回当前条目数（可能包含尚未被惰性清理的过期条目）。
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// UsedBytes 返回当前占用字节数。
func (t *Tier) UsedBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Budget 返回配置的字节预算。
func (t *Tier) Budget() int64 {
	return t.budget
}

// Policy 返回配置的淘汰策略。
func (t *Tier) Policy() Policy {
	return t.policy
}

// =============================================================================
// 内部实现（调用方必须持有 t.mu）
// =============================================================================

// touchLocked 更新访问统计（首次访问时创建）。
func (t *Tier) touchLocked(key string, now time.Time) {
	a, ok := t.access[key]
	if !ok {
		a = &AccessInfo{}
		t.access[key] = a
	}
	a.LastAccess = now
	a.Frequency++
}

// removeLocked 删除条目、访问统计并回退占用字节。
func (t *Tier) removeLocked(key string) {
	if res, ok := t.entries[key]; ok {
		t.used -= res.entry.Size
		delete(t.entries, key)
	}
	delete(t.access, key)
}

// victim 是淘汰候选及其排序依据。
type victim struct {
	key string
	// byTime 为时间排序依据（LRU 的最近访问时间 / FIFO 的创建时间）。
	byTime time.Time
	// byFreq 为 LFU 的频率排序依据。
	byFreq uint64
	// seq 为插入序号，用于平局裁决，保证淘汰顺序确定。
	seq uint64
}

// evictForLocked 按策略淘汰条目，直到可容纳 required 字节。
// 每淘汰一个条目触发一次 onEvict 回调。
func (t *Tier) evictForLocked(required int64) {
	if t.used+required <= t.budget {
		return
	}

	candidates := make([]victim, 0, len(t.entries))
	for key, res := range t.entries {
		v := victim{key: key, seq: res.seq}
		switch t.policy {
		case PolicyLRU:
			// 从未被访问过的条目按创建时间参与排序
			if a, ok := t.access[key]; ok {
				v.byTime = a.LastAccess
			} else {
				v.byTime = res.entry.CreatedAt
			}
		case PolicyLFU:
			if a, ok := t.access[key]; ok {
				v.byFreq = a.Frequency
			}
		case PolicyFIFO:
			v.byTime = res.entry.CreatedAt
		}
		candidates = append(candidates, v)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if t.policy == PolicyLFU {
			if a.byFreq != b.byFreq {
				return a.byFreq < b.byFreq
			}
			return a.seq < b.seq
		}
		if !a.byTime.Equal(b.byTime) {
			return a.byTime.Before(b.byTime)
		}
		return a.seq < b.seq
	})

	for _, v := range candidates {
		if t.used+required <= t.budget {
			break
		}
		res := t.entries[v.key]
		t.removeLocked(v.key)
		t.logger.Debug("xmem: entry evicted",
			slog.String("key", v.key),
			slog.String("policy", string(t.policy)),
			slog.Int64("size", res.entry.Size))
		if t.onEvict != nil {
			t.onEvict(v.key, res.entry)
		}
	}
}
