package xwarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tiercache/pkg/config/xconf"
	"github.com/omeyang/tiercache/pkg/storage/xdisk"
	"github.com/omeyang/tiercache/pkg/storage/xtier"
)

// fakeClock 是可手动推进的测试时钟。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLayer(t *testing.T, clock *fakeClock, opts ...Option) (*Layer, *xtier.Cache) {
	t.Helper()
	disk, err := xdisk.New(t.TempDir(), xdisk.WithClock(clock.Now))
	require.NoError(t, err)
	cache, err := xtier.New("warm-test", xtier.WithClock(clock.Now), xtier.WithDisk(disk))
	require.NoError(t, err)
	layer, err := New(cache, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return layer, cache
}

func TestNew_NilCache(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilCache)
}

func TestEffectiveTTL_Boosts(t *testing.T) {
	layer, _ := newLayer(t, newFakeClock())
	base := time.Hour

	tests := []struct {
		name    string
		quality float64
		count   uint64
		want    time.Duration
	}{
		{"no boost signals", 0, 0, time.Hour},
		{"full quality doubles", 1.0, 0, 2 * time.Hour},
		{"half quality", 0.5, 0, 90 * time.Minute},
		{"frequency alone", 0, 5, 90 * time.Minute},
		{"frequency capped at 3x", 0, 100, 3 * time.Hour},
		{"composed multiplicatively", 1.0, 100, 6 * time.Hour},
		{"quality clamped to [0,1]", 7.5, 0, 2 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layer.EffectiveTTL(base, tt.quality, tt.count))
		})
	}
}

func TestEffectiveTTL_Monotonicity(t *testing.T) {
	layer, _ := newLayer(t, newFakeClock())
	base := time.Hour

	hot := layer.EffectiveTTL(base, 0.9, 10)
	cold := layer.EffectiveTTL(base, 0.1, 0)
	assert.Greater(t, hot, cold)
}

func TestEffectiveTTL_Toggles(t *testing.T) {
	base := time.Hour

	layer, _ := newLayer(t, newFakeClock(), WithQualityBoost(false))
	assert.Equal(t, 2*time.Hour, layer.EffectiveTTL(base, 1.0, 10))

	layer, _ = newLayer(t, newFakeClock(), WithFrequencyBoost(false))
	assert.Equal(t, 2*time.Hour, layer.EffectiveTTL(base, 1.0, 10))

	layer, _ = newLayer(t, newFakeClock(), WithQualityBoost(false), WithFrequencyBoost(false))
	assert.Equal(t, base, layer.EffectiveTTL(base, 1.0, 10))
}

func TestEffectiveTTL_DefaultBase(t *testing.T) {
	layer, cache := newLayer(t, newFakeClock(), WithQualityBoost(false), WithFrequencyBoost(false))
	assert.Equal(t, cache.DefaultTTL(), layer.EffectiveTTL(0, 0, 0))
}

func TestTrackAccess_CandidateThreshold(t *testing.T) {
	layer, _ := newLayer(t, newFakeClock())

	layer.TrackAccess("ns", "k")
	layer.TrackAccess("ns", "k")
	assert.Equal(t, 0, layer.CandidateCount())

	layer.TrackAccess("ns", "k")
	assert.Equal(t, 1, layer.CandidateCount())
	assert.Equal(t, uint64(3), layer.AccessCount("ns", "k"))

	// 重复达标不产生重复候选。
	layer.TrackAccess("ns", "k")
	assert.Equal(t, 1, layer.CandidateCount())
}

func TestGet_TracksAccess(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	layer, cache := newLayer(t, clock)

	require.True(t, cache.Set(ctx, "ns", "k", []byte("v"), time.Hour, xtier.LevelMemory))

	for i := 0; i < 3; i++ {
		_, ok := layer.Get(ctx, "ns", "k")
		require.True(t, ok)
	}
	assert.Equal(t, uint64(3), layer.AccessCount("ns", "k"))

	// 未命中不计访问。
	_, ok := layer.Get(ctx, "ns", "missing")
	require.False(t, ok)
	assert.Zero(t, layer.AccessCount("ns", "missing"))
}

func TestSetWithQuality(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	layer, cache := newLayer(t, clock)

	// quality=1.0 → TTL 翻倍为 2h。
	require.True(t, layer.SetWithQuality(ctx, "ns", "k", []byte("v"), time.Hour, 1.0, xtier.LevelMemory))

	clock.Advance(90 * time.Minute)
	_, ok := cache.Get(ctx, "ns", "k")
	assert.True(t, ok, "boosted entry should outlive base TTL")

	clock.Advance(time.Hour)
	_, ok = cache.Get(ctx, "ns", "k")
	assert.False(t, ok)
}

func TestWarm_IntervalGated(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	layer, cache := newLayer(t, clock, WithWarmInterval(time.Minute))

	require.True(t, cache.Set(ctx, "ns", "k", []byte("v"), time.Hour, xtier.LevelBoth))
	for i := 0; i < 3; i++ {
		layer.TrackAccess("ns", "k")
	}

	// 间隔未到：no-op，候选保留。
	assert.Equal(t, 0, layer.Warm(ctx))
	assert.Equal(t, 1, layer.CandidateCount())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, layer.Warm(ctx))
	assert.Equal(t, 0, layer.CandidateCount(), "processed candidates are cleared")
}

func TestWarm_PromotesFromDisk(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	layer, cache := newLayer(t, clock, WithWarmInterval(time.Minute))

	// 仅写磁盘，再把键刷成候选。
	require.True(t, cache.Set(ctx, "ns", "cold", []byte("v"), time.Hour, xtier.LevelDisk))
	for i := 0; i < 3; i++ {
		layer.TrackAccess("ns", "cold")
	}

	clock.Advance(2 * time.Minute)
	require.Equal(t, 1, layer.Warm(ctx))

	// 预热应已把条目提升回内存层。
	s := cache.Metrics()
	assert.Equal(t, uint64(1), s.DiskHits)

	_, ok := cache.Get(ctx, "ns", "cold")
	require.True(t, ok)
	assert.Equal(t, uint64(1), cache.Metrics().MemoryHits)
}

func TestWarm_MaxPerCycle(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	layer, cache := newLayer(t, clock, WithWarmInterval(time.Minute), WithMaxPerCycle(2))

	keys := []string{"k1", "k2", "k3", "k4"}
	for _, k := range keys {
		require.True(t, cache.Set(ctx, "ns", k, []byte("v"), time.Hour, xtier.LevelBoth))
		for i := 0; i < 3; i++ {
			layer.TrackAccess("ns", k)
		}
	}

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, layer.Warm(ctx))
	assert.Equal(t, 2, layer.CandidateCount(), "remaining candidates wait for next cycle")
}

func TestResetTracking(t *testing.T) {
	layer, _ := newLayer(t, newFakeClock())

	for i := 0; i < 3; i++ {
		layer.TrackAccess("ns", "k")
	}
	require.Equal(t, 1, layer.CandidateCount())

	layer.ResetTracking()
	assert.Equal(t, 0, layer.CandidateCount())
	assert.Zero(t, layer.AccessCount("ns", "k"))
}

func TestNewFromConfig(t *testing.T) {
	cache, err := xtier.New("cfg")
	require.NoError(t, err)

	cfg := xconf.Defaults().Adaptive
	cfg.QualityBoost = false

	layer, err := NewFromConfig(cache, cfg)
	require.NoError(t, err)

	// 质量分加成关闭后只剩频次加成（上限 3 倍）。
	assert.Equal(t, 3*time.Hour, layer.EffectiveTTL(time.Hour, 1.0, 100))
}

func TestLayer_Concurrency(t *testing.T) {
	layer, _ := newLayer(t, newFakeClock())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			key := string(rune('a' + g))
			for i := 0; i < 100; i++ {
				layer.TrackAccess("ns", key)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8, layer.CandidateCount())
	assert.Equal(t, uint64(100), layer.AccessCount("ns", "a"))
}
