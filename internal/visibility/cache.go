package visibility

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/transform"
)

// Cache persists computed series as JSON files so a rerun with unchanged
// inputs skips propagation. The key covers everything a series depends on:
// satellite, observer geodetic position, window geometry, elevation
// threshold, and the TLE epoch, so a refreshed TLE misses and the series
// is recomputed.
type Cache struct {
	dir string
}

// NewCache creates a series cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(rec tle.TLERecord, obs transform.Observer, w Window, minElevationDeg float64) string {
	key := fmt.Sprintf("%d|%.7f|%.7f|%.1f|%d|%d|%d|%.2f|%d",
		rec.CatalogNumber,
		obs.LatDeg, obs.LonDeg, obs.AltitudeM,
		w.Start.Unix(), int(w.Duration.Seconds()), int(w.Interval.Seconds()),
		minElevationDeg,
		rec.Epoch.UnixNano(),
	)
	sum := sha256.Sum256([]byte(key))
	name := fmt.Sprintf("series_%d_%s.json", rec.CatalogNumber, hex.EncodeToString(sum[:8]))
	return filepath.Join(c.dir, name)
}

// Load returns the cached series for this exact input combination, if one
// exists. Unreadable or undecodable files count as misses.
func (c *Cache) Load(rec tle.TLERecord, obs transform.Observer, w Window, minElevationDeg float64) (Series, bool) {
	data, err := os.ReadFile(c.path(rec, obs, w, minElevationDeg))
	if err != nil {
		return Series{}, false
	}

	var s Series
	if err := json.Unmarshal(data, &s); err != nil {
		return Series{}, false
	}
	return s, true
}

// Store writes the series under its input-combination key.
func (c *Cache) Store(rec tle.TLERecord, obs transform.Observer, w Window, minElevationDeg float64, s Series) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating series cache dir: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding series: %w", err)
	}

	if err := os.WriteFile(c.path(rec, obs, w, minElevationDeg), data, 0644); err != nil {
		return fmt.Errorf("writing series cache file: %w", err)
	}
	return nil
}
