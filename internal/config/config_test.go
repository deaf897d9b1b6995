package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasSaneTunables(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/sys/fs/cgroup", cfg.CgroupRoot)
	assert.Equal(t, 128, cfg.EventPipeFD)
	assert.Equal(t, 129, cfg.AckPipeFD)
	assert.Equal(t, 10*time.Second, cfg.DefaultAgingTime)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supervisord.yaml")
	contents := "cgroup_root: /custom/cgroup\ndebug: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/custom/cgroup", cfg.CgroupRoot)
	assert.True(t, cfg.Debug)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().KVRoot, cfg.KVRoot)
	assert.Equal(t, Default().RotateLogsInterval, cfg.RotateLogsInterval)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cgroup_root: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
