package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/voxelcore/internal/mesher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	mode, err := cfg.MesherMode()
	require.NoError(t, err)
	assert.Equal(t, mesher.ModeGreedy, mode)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
world:
  seed: 42
  store_dir: /tmp/voxel
mesher:
  mode: simple
  max_in_flight: 8
loader:
  load_radius: 2
  unload_radius: 3
debug:
  enabled: true
  categories: [mesher]
anchors:
  backend: redis
  addr: cache:6379
logging:
  components:
    mesher: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Seed())
	assert.Equal(t, "/tmp/voxel", cfg.World.StoreDir)
	assert.Equal(t, 4096, cfg.World.EventBuffer, "непереопределённые поля сохраняют значения по умолчанию")
	assert.Equal(t, 8, cfg.Mesher.MaxInFlight)
	assert.Equal(t, []string{"mesher"}, cfg.Debug.Categories)
	assert.Equal(t, "redis", cfg.Anchors.Backend)
	assert.Equal(t, "voxel:", cfg.Anchors.Prefix)
	assert.Equal(t, map[string]string{"mesher": "debug"}, cfg.Logging.Components)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	mode, err := cfg.MesherMode()
	require.NoError(t, err)
	assert.Equal(t, mesher.ModeSimple, mode)
}

func TestLoadFromEnvPath(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", writeConfig(t, "world:\n  seed: 7\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed())
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "mesher:\n  mode: marching\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "loader:\n  load_radius: 5\n  unload_radius: 5\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "world: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "anchors:\n  backend: etcd\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvFallbacks(t *testing.T) {
	cfg := Default()
	cfg.Mesher.Mode = ""
	cfg.World.Seed = 0

	t.Setenv("VOXEL_MESHER_MODE", "simple")
	t.Setenv("VOXEL_METRICS_ADDR", ":2112")
	t.Setenv("VOXEL_SEED", "99")

	mode, err := cfg.MesherMode()
	require.NoError(t, err)
	assert.Equal(t, mesher.ModeSimple, mode)
	assert.Equal(t, ":2112", cfg.MetricsAddr())
	assert.Equal(t, int64(99), cfg.Seed())

	cfg.Metrics.Addr = ":9000"
	assert.Equal(t, ":9000", cfg.MetricsAddr(), "значение из конфига важнее окружения")
}
