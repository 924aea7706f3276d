package xtier

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// maxLatencySamples 是滚动延迟采样窗口大小。
const maxLatencySamples = 256

// Metrics 收集缓存的运行指标。
// 计数器单调递增，仅通过显式的 Reset 清零。所有方法并发安全。
type Metrics struct {
	hits       atomic.Uint64
	misses     atomic.Uint64
	memoryHits atomic.Uint64
	diskHits   atomic.Uint64
	evictions  atomic.Uint64
	errors     atomic.Uint64

	mu     sync.Mutex
	reads  latencyRing
	writes latencyRing
}

// latencyRing 是固定容量的延迟采样环。
type latencyRing struct {
	samples [maxLatencySamples]float64
	next    int
	count   int
}

func (r *latencyRing) observe(ms float64) {
	r.samples[r.next] = ms
	r.next = (r.next + 1) % maxLatencySamples
	if r.count < maxLatencySamples {
		r.count++
	}
}

func (r *latencyRing) avg() float64 {
	if r.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.samples[i]
	}
	return sum / float64(r.count)
}

// NewMetrics 创建指标收集器。
func NewMetrics() *Metrics {
	return &Metrics{}
}

// HitMemory 记录一次内存层命中。
func (m *Metrics) HitMemory() {
	m.hits.Add(1)
	m.memoryHits.Add(1)
}

// HitDisk 记录一次磁盘层命中。
func (m *Metrics) HitDisk() {
	m.hits.Add(1)
	m.diskHits.Add(1)
}

// Miss 记录一次未命中。
func (m *Metrics) Miss() {
	m.misses.Add(1)
}

// Eviction 记录一次淘汰。
func (m *Metrics) Eviction() {
	m.evictions.Add(1)
}

// Error 记录一次存储错误。
func (m *Metrics) Error() {
	m.errors.Add(1)
}

// ObserveRead 记录一次读延迟（毫秒）。
func (m *Metrics) ObserveRead(ms float64) {
	m.mu.Lock()
	m.reads.observe(ms)
	m.mu.Unlock()
}

// ObserveWrite 记录一次写延迟（毫秒）。
func (m *Metrics) ObserveWrite(ms float64) {
	m.mu.Lock()
	m.writes.observe(ms)
	m.mu.Unlock()
}

// Reset 清零所有计数器与延迟采样。仅供运维显式调用。
func (m *Metrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.memoryHits.Store(0)
	m.diskHits.Store(0)
	m.evictions.Store(0)
	m.errors.Store(0)

	m.mu.Lock()
	m.reads = latencyRing{}
	m.writes = latencyRing{}
	m.mu.Unlock()
}

// Snapshot 是指标的一致性快照，供外部监控消费。
type Snapshot struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	MemoryHits  uint64  `json:"memory_hits"`
	DiskHits    uint64  `json:"disk_hits"`
	Evictions   uint64  `json:"evictions"`
	Errors      uint64  `json:"errors"`
	TotalItems  int64   `json:"total_items"`
	MemoryBytes int64   `json:"memory_bytes"`
	DiskBytes   int64   `json:"disk_bytes"`
	AvgWriteMs  float64 `json:"avg_write_ms"`
	AvgReadMs   float64 `json:"avg_read_ms"`
	HitRatio    float64 `json:"hit_ratio"`
}

// snapshot 导出计数器与延迟均值；条目数与字节占用由 Cache 补全。
func (m *Metrics) snapshot() Snapshot {
	s := Snapshot{
		Hits:       m.hits.Load(),
		Misses:     m.misses.Load(),
		MemoryHits: m.memoryHits.Load(),
		DiskHits:   m.diskHits.Load(),
		Evictions:  m.evictions.Load(),
		Errors:     m.errors.Load(),
	}

	m.mu.Lock()
	s.AvgReadMs = m.reads.avg()
	s.AvgWriteMs = m.writes.avg()
	m.mu.Unlock()

	if total := s.Hits + s.Misses; total > 0 {
		s.HitRatio = float64(s.Hits) / float64(total)
	}
	return s
}

// String 返回人类可读的摘要，用于日志与 CLI 输出。
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"hits=%d (mem=%d disk=%d) misses=%d ratio=%.2f evictions=%d errors=%d items=%d mem=%s disk=%s read=%.2fms write=%.2fms",
		s.Hits, s.MemoryHits, s.DiskHits, s.Misses, s.HitRatio,
		s.Evictions, s.Errors, s.TotalItems,
		humanize.IBytes(uint64(max(s.MemoryBytes, 0))),
		humanize.IBytes(uint64(max(s.DiskBytes, 0))),
		s.AvgReadMs, s.AvgWriteMs,
	)
}
