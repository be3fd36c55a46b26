package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.InDelta(t, 24.9441667, cfg.Observer.LatitudeDeg, 1e-9)
	assert.InDelta(t, 121.3713889, cfg.Observer.LongitudeDeg, 1e-9)
	assert.InDelta(t, 50.0, cfg.Observer.AltitudeM, 1e-9)

	assert.Empty(t, cfg.Window.Start)
	assert.Equal(t, 30*time.Second, cfg.Window.Interval)
	assert.Equal(t, time.Duration(0), cfg.Window.Duration)

	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 10, cfg.Selector.MaxSwaps)
	assert.Equal(t, 0, cfg.Selector.Tolerance)

	assert.Equal(t, "/tmp/satpool/tle", cfg.TLE.CacheDir)
	assert.Equal(t, 5, cfg.TLE.CacheMaxFiles)
	assert.False(t, cfg.TLE.AutoFetch)
	assert.Equal(t, 6*time.Hour, cfg.TLE.MaxAge)

	assert.False(t, cfg.SeriesCache.Enabled)
	assert.Empty(t, cfg.Metrics.Listen)
	assert.Equal(t, "info", cfg.Log.Level)

	require.Len(t, cfg.Constellations, 2)
	sl := cfg.Constellations["starlink"]
	assert.True(t, sl.Enabled)
	assert.InDelta(t, 5.0, sl.MinElevationDeg, 1e-9)
	assert.Equal(t, 10, sl.MinVisible)
	assert.Equal(t, 15, sl.MaxVisible)
	assert.Equal(t, 12, sl.TargetCount)
	assert.Contains(t, sl.SourceURL, "GROUP=starlink")

	ow := cfg.Constellations["oneweb"]
	assert.InDelta(t, 10.0, ow.MinElevationDeg, 1e-9)
	assert.Equal(t, 4, ow.TargetCount)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfig(t, `
observer:
  latitude_deg: 40.0
window:
  interval: 60s
  start: "2024-04-10T12:00:00Z"
selector:
  max_swaps: 4
constellations:
  oneweb:
    enabled: false
  starlink:
    min_elevation_deg: 8.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 40.0, cfg.Observer.LatitudeDeg, 1e-9)
	assert.InDelta(t, 121.3713889, cfg.Observer.LongitudeDeg, 1e-9)
	assert.Equal(t, time.Minute, cfg.Window.Interval)
	assert.Equal(t, 4, cfg.Selector.MaxSwaps)

	start, err := cfg.Window.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC), start)

	assert.False(t, cfg.Constellations["oneweb"].Enabled)
	assert.InDelta(t, 8.0, cfg.Constellations["starlink"].MinElevationDeg, 1e-9)
	// Keys the file does not mention keep their defaults.
	assert.Equal(t, 10, cfg.Constellations["starlink"].MinVisible)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SATPOOL_OBSERVER_LATITUDE_DEG", "25.5")
	t.Setenv("SATPOOL_WINDOW_INTERVAL", "10s")
	t.Setenv("SATPOOL_SELECTOR_MAX_SWAPS", "3")
	t.Setenv("SATPOOL_CONSTELLATIONS_STARLINK_TARGET_COUNT", "14")
	t.Setenv("SATPOOL_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.InDelta(t, 25.5, cfg.Observer.LatitudeDeg, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Window.Interval)
	assert.Equal(t, 3, cfg.Selector.MaxSwaps)
	assert.Equal(t, 14, cfg.Constellations["starlink"].TargetCount)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestEnvOverridesYAMLFile(t *testing.T) {
	path := writeConfig(t, "workers: 2\n")
	t.Setenv("SATPOOL_WORKERS", "6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"latitude", "observer:\n  latitude_deg: 95\n", "latitude"},
		{"interval", "window:\n  interval: 0s\n", "interval"},
		{"start", "window:\n  start: yesterday\n", "window start"},
		{"workers", "workers: 0\n", "workers"},
		{"swaps", "selector:\n  max_swaps: -1\n", "max_swaps"},
		{"level", "log:\n  level: loud\n", "log level"},
		{"bounds", "constellations:\n  starlink:\n    max_visible: 2\n", "below min_visible"},
		{"unknown", "constellations:\n  kuiper:\n    enabled: true\n", "unknown constellation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEnabledConstellations(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []constellation.ID{constellation.OneWeb, constellation.Starlink}, cfg.EnabledConstellations())

	cfg, err = Load(writeConfig(t, "constellations:\n  oneweb:\n    enabled: false\n"))
	require.NoError(t, err)
	assert.Equal(t, []constellation.ID{constellation.Starlink}, cfg.EnabledConstellations())
}

func TestCatalogAppliesOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
constellations:
  starlink:
    min_elevation_deg: 8.0
    target_count: 16
`))
	require.NoError(t, err)

	catalog := cfg.Catalog()
	p, ok := catalog.Params(constellation.Starlink)
	require.True(t, ok)
	assert.InDelta(t, 8.0, p.MinElevationDeg, 1e-9)
	assert.Equal(t, 16, p.TargetCount)
	// Overrides leave the orbital design alone.
	assert.Equal(t, 96*time.Minute, p.NominalPeriod)
	assert.Len(t, catalog.Shells(constellation.Starlink), 3)
}

func TestConstellationFallback(t *testing.T) {
	cfg := &Config{}
	cc := cfg.Constellation(constellation.OneWeb)
	assert.True(t, cc.Enabled)
	assert.InDelta(t, 10.0, cc.MinElevationDeg, 1e-9)
	assert.Equal(t, 4, cc.TargetCount)
	assert.Contains(t, cc.SourceURL, "GROUP=oneweb")
}

func TestSlogLevels(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LogConfig{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{Level: "info"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, LogConfig{Level: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, LogConfig{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, LogConfig{}.SlogLevel())
}
