package xconf

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const yamlConfig = `
cache:
  memory_budget_mb: 50
  eviction_policy: lfu
  disk_enabled: true
  disk_root: /tmp/tiercache
  default_ttl_seconds: 600
pipeline:
  max_consecutive_errors: 5
  batch_size: 500
adaptive:
  quality_boost: false
`

func TestLoadBytes_YAML(t *testing.T) {
	loaded, err := LoadBytes([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)

	cfg, err := loaded.Parse()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Cache.MemoryBudgetMB)
	assert.Equal(t, "lfu", cfg.Cache.EvictionPolicy)
	assert.Equal(t, 600, cfg.Cache.DefaultTTLSeconds)
	assert.Equal(t, 5, cfg.Pipeline.MaxConsecutiveErrors)
	assert.Equal(t, 500, cfg.Pipeline.BatchSize)
	assert.False(t, cfg.Adaptive.QualityBoost)

	// 未出现的字段保持默认值
	assert.Equal(t, 60, cfg.Cache.CheckIntervalSeconds)
	assert.Equal(t, 300, cfg.Pipeline.CircuitBreakTTLSeconds)
	assert.True(t, cfg.Adaptive.FrequencyBoost)
}

func TestLoadBytes_JSON(t *testing.T) {
	loaded, err := LoadBytes([]byte(`{"cache":{"memory_budget_mb":10,"eviction_policy":"fifo"}}`), FormatJSON)
	require.NoError(t, err)

	cfg, err := loaded.Parse()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Cache.MemoryBudgetMB)
	assert.Equal(t, "fifo", cfg.Cache.EvictionPolicy)
}

func TestLoadBytes_EmptyDataYieldsDefaults(t *testing.T) {
	loaded, err := LoadBytes(nil, FormatYAML)
	require.NoError(t, err)

	cfg, err := loaded.Parse()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadBytes_InvalidFormat(t *testing.T) {
	_, err := LoadBytes([]byte("{}"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadBytes_ParseFailure(t *testing.T) {
	_, err := LoadBytes([]byte("{invalid json"), FormatJSON)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, loaded.Format())
	assert.Equal(t, path, loaded.Path())

	cfg, err := loaded.Parse()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Cache.MemoryBudgetMB)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Load("/nonexistent/config.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load("/nonexistent/config.yaml")
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestValidate_Failures(t *testing.T) {
	cases := map[string]func(*Config){
		"zero budget":      func(c *Config) { c.Cache.MemoryBudgetMB = 0 },
		"unknown policy":   func(c *Config) { c.Cache.EvictionPolicy = "random" },
		"disk no root":     func(c *Config) { c.Cache.DiskEnabled = true; c.Cache.DiskRoot = "" },
		"zero ttl":         func(c *Config) { c.Cache.DefaultTTLSeconds = 0 },
		"zero interval":    func(c *Config) { c.Cache.CheckIntervalSeconds = 0 },
		"zero max errors":  func(c *Config) { c.Pipeline.MaxConsecutiveErrors = 0 },
		"zero break ttl":   func(c *Config) { c.Pipeline.CircuitBreakTTLSeconds = 0 },
		"zero batch":       func(c *Config) { c.Pipeline.BatchSize = 0 },
		"neg workers":      func(c *Config) { c.Pipeline.MaxWorkers = -1 },
		"neg warm":         func(c *Config) { c.Adaptive.WarmIntervalSeconds = -1 },
		"neg warm cycle":   func(c *Config) { c.Adaptive.WarmMaxPerCycle = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDefaults_MaxWorkersTracksCPU(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), Defaults().Pipeline.MaxWorkers)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  memory_budget_mb: 10\n"), 0600))

	loaded, err := Load(path)
	require.NoError(t, err)

	cfg := loaded.MustParse()
	assert.Equal(t, 10, cfg.Cache.MemoryBudgetMB)

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  memory_budget_mb: 20\n"), 0600))
	require.NoError(t, loaded.Reload())

	cfg = loaded.MustParse()
	assert.Equal(t, 20, cfg.Cache.MemoryBudgetMB)
}

func TestReload_BytesNotSupported(t *testing.T) {
	loaded, err := LoadBytes([]byte("{}"), FormatJSON)
	require.NoError(t, err)
	assert.ErrorIs(t, loaded.Reload(), ErrNotWatchable)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  memory_budget_mb: 10\n"), 0600))

	loaded, err := Load(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var got []Config
	done := make(chan struct{}, 1)

	w, err := Watch(loaded, func(cfg Config, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		got = append(got, cfg)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { require.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  memory_budget_mb: 42\n"), 0600))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	assert.Equal(t, 42, got[len(got)-1].Cache.MemoryBudgetMB)
}

func TestWatch_BytesNotWatchable(t *testing.T) {
	loaded, err := LoadBytes([]byte("{}"), FormatJSON)
	require.NoError(t, err)

	_, err = Watch(loaded, nil)
	assert.ErrorIs(t, err, ErrNotWatchable)
}
