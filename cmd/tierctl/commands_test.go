package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tiercache/pkg/storage/xdisk"
)

func TestCreateApp_Commands(t *testing.T) {
	app := createApp()

	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{"stats", "sweep", "clear", "checkcfg"}, names)
}

func TestStats_MissingRoot(t *testing.T) {
	app := createApp()
	err := app.Run(context.Background(), []string{"tierctl", "stats"})
	require.Error(t, err)

	var usageErr *usageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestSweep_RemovesExpired(t *testing.T) {
	root := t.TempDir()
	disk, err := xdisk.New(root)
	require.NoError(t, err)

	now := time.Now()
	key := "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6"
	require.NoError(t, disk.Put(key, xdisk.Entry{
		Value:     []byte("v"),
		Namespace: "ns",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
		Size:      1,
	}))

	app := createApp()
	require.NoError(t, app.Run(context.Background(), []string{"tierctl", "sweep", "--root", root}))

	stats, err := disk.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Files)
}

func TestClear_ByNamespace(t *testing.T) {
	root := t.TempDir()
	disk, err := xdisk.New(root)
	require.NoError(t, err)

	now := time.Now()
	entries := map[string]string{
		"a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6": "keep",
		"b1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6": "drop",
	}
	for key, ns := range entries {
		require.NoError(t, disk.Put(key, xdisk.Entry{
			Value:     []byte("v"),
			Namespace: ns,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
			Size:      1,
		}))
	}

	app := createApp()
	require.NoError(t, app.Run(context.Background(),
		[]string{"tierctl", "clear", "--root", root, "--namespace", "drop"}))

	stats, err := disk.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Files)
}

func TestCheckcfg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  memory_budget_mb: 64\n"), 0600))

	app := createApp()
	require.NoError(t, app.Run(context.Background(), []string{"tierctl", "checkcfg", path}))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cache:\n  eviction_policy: mru\n"), 0600))
	assert.Error(t, createApp().Run(context.Background(), []string{"tierctl", "checkcfg", bad}))
}
