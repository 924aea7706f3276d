package xtier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/tiercache/pkg/config/xconf"
	"github.com/omeyang/tiercache/pkg/storage/xdisk"
)

func TestRegistry_RegisterGet(t *testing.T) {
	r := NewRegistry()

	c1, err := New("users")
	require.NoError(t, err)
	c2, err := New("sessions")
	require.NoError(t, err)

	require.NoError(t, r.Register(c1))
	require.NoError(t, r.Register(c2))

	got, err := r.Get("users")
	require.NoError(t, err)
	assert.Same(t, c1, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrCacheNotFound)

	err = r.Register(c1)
	assert.ErrorIs(t, err, ErrCacheExists)

	assert.Equal(t, []string{"sessions", "users"}, r.Names())
}

func TestRegistry_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	r := NewRegistry()

	disk, err := xdisk.New(t.TempDir())
	require.NoError(t, err)
	tiered, err := New("tiered", WithDisk(disk))
	require.NoError(t, err)
	memOnly, err := New("memonly")
	require.NoError(t, err)

	require.NoError(t, r.Register(tiered))
	require.NoError(t, r.Register(memOnly))

	require.True(t, tiered.Set(ctx, "ns", "k", []byte("v"), time.Hour, LevelMemory))
	require.True(t, memOnly.Set(ctx, "ns", "k", []byte("v"), time.Hour, LevelMemory))

	require.NoError(t, r.StartJanitor(time.Hour))
	require.NoError(t, r.Close(ctx))

	// 关停时内存驻留条目应已落盘；纯内存缓存静默跳过。
	stats, err := disk.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Files)

	// 关闭后注册表拒绝一切操作。
	assert.ErrorIs(t, r.Close(ctx), ErrRegistryClosed)
	_, err = r.Get("tiered")
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.ErrorIs(t, r.Register(memOnly), ErrRegistryClosed)
}

func TestRegistry_JanitorValidation(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry()
	assert.Error(t, r.StartJanitor(0))

	require.NoError(t, r.StartJanitor(time.Hour))
	assert.ErrorIs(t, r.StartJanitor(time.Hour), ErrJanitorRunning)

	require.NoError(t, r.Close(context.Background()))
}

func TestRegistry_SweepAllRunsTasks(t *testing.T) {
	r := NewRegistry()

	c, err := New("swept")
	require.NoError(t, err)
	require.NoError(t, r.Register(c))

	ctx := context.Background()
	require.True(t, c.Set(ctx, "ns", "k", []byte("v"), time.Millisecond, LevelMemory))
	time.Sleep(5 * time.Millisecond)

	var taskRuns int
	assert.Error(t, r.AddJanitorTask(nil))
	require.NoError(t, r.AddJanitorTask(func() { taskRuns++ }))

	require.NoError(t, r.SweepAll())
	assert.Equal(t, 1, taskRuns)
	assert.False(t, c.Exists(ctx, "ns", "k"), "expired entry removed by forced sweep")

	require.NoError(t, r.Close(ctx))
	assert.ErrorIs(t, r.SweepAll(), ErrRegistryClosed)
	assert.ErrorIs(t, r.AddJanitorTask(func() {}), ErrRegistryClosed)
}

func TestNewFromConfig(t *testing.T) {
	cfg := xconf.Defaults().Cache
	cfg.DiskRoot = t.TempDir()

	c, err := NewFromConfig("cfg", cfg)
	require.NoError(t, err)
	assert.Equal(t, "cfg", c.Name())
	assert.Equal(t, time.Hour, c.DefaultTTL())

	ctx := context.Background()
	require.True(t, c.Set(ctx, "ns", "k", []byte("v"), 0, LevelBoth))
	got, ok := c.Get(ctx, "ns", "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestNewFromConfig_InvalidPolicy(t *testing.T) {
	cfg := xconf.Defaults().Cache
	cfg.EvictionPolicy = "random"
	cfg.DiskEnabled = false

	_, err := NewFromConfig("cfg", cfg)
	assert.Error(t, err)
}
