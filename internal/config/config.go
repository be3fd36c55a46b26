// Package config loads the pipeline configuration from an optional YAML
// file, SATPOOL_* environment variables, and built-in defaults, in that
// order of precedence (file beats defaults, environment beats both).
//
// Every key carries a default so the binary runs with no file at all.
// Defaults for the per-constellation blocks come from the built-in
// constellation catalog.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
)

// ObserverConfig places the ground observer in WGS-84 coordinates.
type ObserverConfig struct {
	LatitudeDeg  float64 `mapstructure:"latitude_deg"`
	LongitudeDeg float64 `mapstructure:"longitude_deg"`
	AltitudeM    float64 `mapstructure:"altitude_m"`
}

// WindowConfig bounds the observation window. An empty Start pivots the
// window on the newest TLE epoch of each constellation; a zero Duration
// falls back to the constellation's nominal orbital period.
type WindowConfig struct {
	Start    string        `mapstructure:"start"`
	Interval time.Duration `mapstructure:"interval"`
	Duration time.Duration `mapstructure:"duration"`
}

// StartTime parses the configured window start. The zero time means the
// window pivots on the newest TLE epoch.
func (w WindowConfig) StartTime() (time.Time, error) {
	if w.Start == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, w.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("window start %q: %w", w.Start, err)
	}
	return t.UTC(), nil
}

// SelectorConfig bounds the pool repair loop.
type SelectorConfig struct {
	MaxSwaps  int `mapstructure:"max_swaps"`
	Tolerance int `mapstructure:"tolerance"`
}

// TLEConfig controls where TLE data comes from and how long it lives.
// Dir points at local .tle files and takes precedence over the cache;
// AutoFetch refreshes the cache from the source URLs when it is empty or
// older than MaxAge.
type TLEConfig struct {
	Dir           string        `mapstructure:"dir"`
	CacheDir      string        `mapstructure:"cache_dir"`
	CacheMaxFiles int           `mapstructure:"cache_max_files"`
	AutoFetch     bool          `mapstructure:"auto_fetch"`
	MaxAge        time.Duration `mapstructure:"max_age"`
}

// SeriesCacheConfig controls the on-disk visibility series cache.
type SeriesCacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// MetricsConfig controls the ops HTTP listener. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SlogLevel maps the configured name onto a slog level. Validate rejects
// unknown names, so the info fallback only covers the zero value.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConstellationConfig overrides the built-in per-constellation parameters.
type ConstellationConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	SourceURL       string  `mapstructure:"source_url"`
	MinElevationDeg float64 `mapstructure:"min_elevation_deg"`
	MinVisible      int     `mapstructure:"min_visible"`
	MaxVisible      int     `mapstructure:"max_visible"`
	TargetCount     int     `mapstructure:"target_count"`
}

// Config is the full pipeline configuration.
type Config struct {
	Observer       ObserverConfig                 `mapstructure:"observer"`
	Window         WindowConfig                   `mapstructure:"window"`
	Workers        int                            `mapstructure:"workers"`
	Selector       SelectorConfig                 `mapstructure:"selector"`
	TLE            TLEConfig                      `mapstructure:"tle"`
	SeriesCache    SeriesCacheConfig              `mapstructure:"series_cache"`
	Metrics        MetricsConfig                  `mapstructure:"metrics"`
	Log            LogConfig                      `mapstructure:"log"`
	Constellations map[string]ConstellationConfig `mapstructure:"constellations"`
}

// Load reads the configuration. When path is empty it searches for
// satpool.yaml in the working directory and /etc/satpool, and a missing
// file is not an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SATPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("satpool")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/satpool")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers a default for every key. Registration is what makes
// a key visible to Unmarshal, so environment overrides only work for keys
// listed here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("observer.latitude_deg", 24.9441667)
	v.SetDefault("observer.longitude_deg", 121.3713889)
	v.SetDefault("observer.altitude_m", 50.0)

	v.SetDefault("window.start", "")
	v.SetDefault("window.interval", "30s")
	v.SetDefault("window.duration", "0s")

	v.SetDefault("workers", runtime.NumCPU())

	v.SetDefault("selector.max_swaps", 10)
	v.SetDefault("selector.tolerance", 0)

	v.SetDefault("tle.dir", "")
	v.SetDefault("tle.cache_dir", "/tmp/satpool/tle")
	v.SetDefault("tle.cache_max_files", 5)
	v.SetDefault("tle.auto_fetch", false)
	v.SetDefault("tle.max_age", "6h")

	v.SetDefault("series_cache.enabled", false)
	v.SetDefault("series_cache.dir", "/tmp/satpool/series")

	v.SetDefault("metrics.listen", "")

	v.SetDefault("log.level", "info")

	catalog := constellation.DefaultCatalog()
	for _, id := range catalog.IDs() {
		p, _ := catalog.Params(id)
		prefix := "constellations." + string(id) + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"source_url", defaultSourceURL(id))
		v.SetDefault(prefix+"min_elevation_deg", p.MinElevationDeg)
		v.SetDefault(prefix+"min_visible", p.MinVisible)
		v.SetDefault(prefix+"max_visible", p.MaxVisible)
		v.SetDefault(prefix+"target_count", p.TargetCount)
	}
}

func defaultSourceURL(id constellation.ID) string {
	return fmt.Sprintf("https://celestrak.org/NORAD/elements/gp.php?GROUP=%s&FORMAT=tle", string(id))
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Observer.LatitudeDeg < -90 || c.Observer.LatitudeDeg > 90 {
		return fmt.Errorf("observer latitude %.4f out of range [-90, 90]", c.Observer.LatitudeDeg)
	}
	if c.Observer.LongitudeDeg < -180 || c.Observer.LongitudeDeg > 180 {
		return fmt.Errorf("observer longitude %.4f out of range [-180, 180]", c.Observer.LongitudeDeg)
	}
	if _, err := c.Window.StartTime(); err != nil {
		return err
	}
	if c.Window.Interval <= 0 {
		return fmt.Errorf("window interval %v must be positive", c.Window.Interval)
	}
	if c.Window.Duration < 0 {
		return fmt.Errorf("window duration %v must not be negative", c.Window.Duration)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers %d must be at least 1", c.Workers)
	}
	if c.Selector.MaxSwaps < 0 {
		return fmt.Errorf("selector max_swaps %d must not be negative", c.Selector.MaxSwaps)
	}
	if c.Selector.Tolerance < 0 {
		return fmt.Errorf("selector tolerance %d must not be negative", c.Selector.Tolerance)
	}
	if c.TLE.CacheMaxFiles < 1 {
		return fmt.Errorf("tle cache_max_files %d must be at least 1", c.TLE.CacheMaxFiles)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level %q: want debug, info, warn or error", c.Log.Level)
	}

	known := constellation.DefaultCatalog()
	for name, cc := range c.Constellations {
		if _, ok := known.Params(constellation.ID(name)); !ok {
			return fmt.Errorf("unknown constellation %q in configuration", name)
		}
		if cc.MinElevationDeg < 0 || cc.MinElevationDeg >= 90 {
			return fmt.Errorf("%s min_elevation_deg %.1f out of range [0, 90)", name, cc.MinElevationDeg)
		}
		if cc.MinVisible < 0 {
			return fmt.Errorf("%s min_visible %d must not be negative", name, cc.MinVisible)
		}
		if cc.MaxVisible < cc.MinVisible {
			return fmt.Errorf("%s max_visible %d below min_visible %d", name, cc.MaxVisible, cc.MinVisible)
		}
		if cc.Enabled && cc.TargetCount < 1 {
			return fmt.Errorf("%s target_count %d must be at least 1", name, cc.TargetCount)
		}
	}
	return nil
}

// EnabledConstellations returns the enabled constellation IDs in
// alphabetical order.
func (c *Config) EnabledConstellations() []constellation.ID {
	var ids []constellation.ID
	for name, cc := range c.Constellations {
		if cc.Enabled {
			ids = append(ids, constellation.ID(name))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Constellation returns the block for the given ID, falling back to the
// built-in parameters when the configuration has no block for it.
func (c *Config) Constellation(id constellation.ID) ConstellationConfig {
	if cc, ok := c.Constellations[string(id)]; ok {
		return cc
	}
	cc := ConstellationConfig{Enabled: true, SourceURL: defaultSourceURL(id)}
	if p, ok := constellation.DefaultCatalog().Params(id); ok {
		cc.MinElevationDeg = p.MinElevationDeg
		cc.MinVisible = p.MinVisible
		cc.MaxVisible = p.MaxVisible
		cc.TargetCount = p.TargetCount
	}
	return cc
}

// Catalog materializes the constellation catalog with the configured
// overrides applied on top of the built-in shell designs and periods.
func (c *Config) Catalog() *constellation.Catalog {
	base := constellation.DefaultCatalog()
	params := make(map[constellation.ID]constellation.Params)
	for _, id := range base.IDs() {
		p, _ := base.Params(id)
		if cc, ok := c.Constellations[string(id)]; ok {
			p.MinElevationDeg = cc.MinElevationDeg
			p.MinVisible = cc.MinVisible
			p.MaxVisible = cc.MaxVisible
			p.TargetCount = cc.TargetCount
		}
		params[id] = p
	}
	return constellation.NewCatalog(base.AllShells(), params)
}
