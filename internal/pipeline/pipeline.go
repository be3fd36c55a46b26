// Package pipeline orchestrates one full run: TLE load, series build,
// plane grouping, scoring, pool selection, and coverage validation, per
// constellation.
//
// Constellations execute in alphabetical order and fail independently: a
// load error or an insufficient candidate set is recorded on that
// constellation's result and the others still run. Stages within a
// constellation are strictly ordered; grouping, scoring, and selection only
// see completed series.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/config"
	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/coverage"
	"github.com/cedarwud/ntn-stack-sub027/internal/metrics"
	"github.com/cedarwud/ntn-stack-sub027/internal/planes"
	"github.com/cedarwud/ntn-stack-sub027/internal/propagation"
	"github.com/cedarwud/ntn-stack-sub027/internal/scoring"
	"github.com/cedarwud/ntn-stack-sub027/internal/selection"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/transform"
	"github.com/cedarwud/ntn-stack-sub027/internal/visibility"
)

// Runner executes the pipeline for one configuration.
type Runner struct {
	cfg     *config.Config
	catalog *constellation.Catalog
	store   *tle.Store
	logger  *slog.Logger
}

// NewRunner builds a Runner. The constellation catalog is materialized once
// from the configuration and shared across constellations.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		catalog: cfg.Catalog(),
		store:   tle.NewStore(),
		logger:  logger,
	}
}

// Run executes every enabled constellation in alphabetical order. A
// constellation failure lands in its result's Err; Run itself only returns
// an error when the context dies, and the results completed by then are
// still returned.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		GeneratedAt: time.Now().UTC(),
		Observer: ObserverInfo{
			LatitudeDeg:  r.cfg.Observer.LatitudeDeg,
			LongitudeDeg: r.cfg.Observer.LongitudeDeg,
			AltitudeM:    r.cfg.Observer.AltitudeM,
		},
	}

	pool := propagation.NewPool(r.cfg.Workers, r.logger)

	for _, id := range r.cfg.EnabledConstellations() {
		cr := r.runOne(ctx, id, pool)
		if cr.Err != nil {
			cr.ErrorText = cr.Err.Error()
			r.logger.Warn("constellation failed", "constellation", id, "error", cr.Err)
		}
		res.Constellations = append(res.Constellations, cr)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	return res, nil
}

func (r *Runner) runOne(ctx context.Context, id constellation.ID, pool *propagation.Pool) ConstellationResult {
	cr := ConstellationResult{Constellation: id}

	params, ok := r.catalog.Params(id)
	if !ok {
		cr.Err = fmt.Errorf("no parameters for constellation %s", id)
		return cr
	}

	var loaded tle.LoadResult
	cr.Err = r.stage(id, "load", func() error {
		data, source, fetchedAt, err := r.loadTLE(ctx, id)
		if err != nil {
			return err
		}
		loaded, err = tle.Load(bytes.NewReader(data), id, r.logger)
		if err != nil {
			return err
		}
		metrics.CountTLELoad(string(id), len(loaded.Records), len(loaded.Excluded))
		r.logger.Info("TLE load complete",
			"constellation", id,
			"source", source,
			"records", len(loaded.Records),
			"excluded", len(loaded.Excluded),
		)
		if len(loaded.Records) == 0 {
			return fmt.Errorf("no usable TLE records for %s", id)
		}
		r.store.Set(tle.NewDataset(id, source, fetchedAt, loaded.Records))
		metrics.SetTLEAge(string(id), r.store.AgeSeconds(id))
		return nil
	})
	cr.Stats.RecordsLoaded = len(loaded.Records)
	cr.Stats.RecordsExcluded = len(loaded.Excluded)
	if cr.Err != nil {
		return cr
	}

	w, err := r.resolveWindow(id, params)
	if err != nil {
		cr.Err = err
		return cr
	}
	times := w.Times()
	cr.Stats.Window = WindowInfo{
		Start:           w.Start,
		End:             w.End(),
		IntervalSeconds: w.Interval.Seconds(),
		Samples:         len(times),
	}

	observer := transform.NewObserver(r.cfg.Observer.LatitudeDeg, r.cfg.Observer.LongitudeDeg, r.cfg.Observer.AltitudeM)
	var seriesCache *visibility.Cache
	if r.cfg.SeriesCache.Enabled {
		seriesCache = visibility.NewCache(r.cfg.SeriesCache.Dir)
	}
	builder := visibility.NewBuilder(observer, params.MinElevationDeg, pool, seriesCache, r.logger)

	var built visibility.BuildResult
	cr.Err = r.stage(id, "series", func() error {
		var err error
		built, err = builder.BuildAll(ctx, loaded.Records, w)
		samples := 0
		for _, s := range built.Series {
			samples += len(s.Samples)
		}
		metrics.CountSamples(string(id), samples)
		metrics.CountPropagationFailures(string(id), built.PropagationFailures)
		return err
	})
	cr.Stats.SeriesBuilt = len(built.Series)
	cr.Stats.InitFailures = len(built.InitFailures)
	cr.Stats.PropagationFailures = built.PropagationFailures
	if cr.Err != nil {
		return cr
	}

	// Elements for every satellite that survived the series stage.
	elems := make(map[int]tle.OrbitalElements, len(loaded.Records))
	for _, rec := range loaded.Records {
		el, err := tle.ParseElements(rec)
		if err != nil {
			r.logger.Warn("skipping satellite with unparseable elements",
				"constellation", id, "catalog_number", rec.CatalogNumber, "error", err)
			continue
		}
		elems[rec.CatalogNumber] = el
	}

	var groups map[string]planes.Group
	cr.Err = r.stage(id, "group", func() error {
		sats := make([]planes.Satellite, 0, len(built.Series))
		for _, s := range built.Series {
			el, ok := elems[s.CatalogNumber]
			if !ok {
				continue
			}
			sats = append(sats, planes.Satellite{CatalogNumber: s.CatalogNumber, Elements: el})
		}
		groups = planes.NewGrouper(id, r.catalog).Group(sats)
		dist := planes.AnalyzeDistribution(groups)
		cr.Stats.PlaneCount = dist.PlaneCount
		cr.Stats.PlaneUniformity = dist.Uniformity
		r.logger.Info("plane grouping complete",
			"constellation", id,
			"planes", dist.PlaneCount,
			"uniformity", dist.Uniformity,
		)
		return nil
	})
	if cr.Err != nil {
		return cr
	}

	var candidates []selection.Candidate
	cr.Err = r.stage(id, "score", func() error {
		scorer := scoring.NewScorer(id, r.catalog, r.cfg.Observer.LatitudeDeg, scoring.DefaultWeights())
		candidates = make([]selection.Candidate, 0, len(built.Series))
		for _, s := range built.Series {
			el, ok := elems[s.CatalogNumber]
			if !ok {
				continue
			}
			candidates = append(candidates, selection.Candidate{
				CatalogNumber: s.CatalogNumber,
				Elements:      el,
				Series:        s,
				Score:         scorer.ScoreSatellite(el, s),
			})
		}
		return nil
	})
	if cr.Err != nil {
		return cr
	}

	bounds := coverage.Bounds{TargetMin: params.MinVisible, TargetMax: params.MaxVisible}

	var selected selection.Pool
	cr.Err = r.stage(id, "select", func() error {
		sel := selection.NewSelector(r.catalog, r.cfg.Selector.MaxSwaps, r.logger)
		var err error
		selected, err = sel.Select(ctx, selection.Input{
			Constellation: id,
			TargetCount:   params.TargetCount,
			Bounds:        bounds,
			Tolerance:     r.cfg.Selector.Tolerance,
			Candidates:    candidates,
		})
		if err != nil {
			return err
		}
		metrics.CountSwaps(string(id), selected.SwapsUsed)
		return nil
	})
	if cr.Err != nil {
		return cr
	}

	cr.Err = r.stage(id, "validate", func() error {
		seriesByCat := make(map[int]visibility.Series, len(built.Series))
		for _, s := range built.Series {
			seriesByCat[s.CatalogNumber] = s
		}
		report := coverage.Validate(id, selected.Selected, seriesByCat, bounds, r.cfg.Selector.Tolerance)
		metrics.SetCoverage(string(id), report.MinVisible, report.MaxVisible, report.MeanVisible, report.Compliant)
		cr.Pool = &selected
		cr.Coverage = &report
		r.logger.Info("coverage validated",
			"constellation", id,
			"compliant", report.Compliant,
			"min_visible", report.MinVisible,
			"max_visible", report.MaxVisible,
			"handovers", len(report.Handovers),
		)
		return nil
	})
	return cr
}

// stage runs f with duration logging and metrics under the given name.
func (r *Runner) stage(id constellation.ID, name string, f func() error) error {
	start := time.Now()
	err := f()
	d := time.Since(start)
	metrics.ObserveStage(string(id), name, d)
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	r.logger.Debug("stage complete", "constellation", id, "stage", name, "duration_ms", d.Milliseconds())
	return nil
}

// resolveWindow pins the sampling window: the configured start, or the
// newest epoch of the stored dataset truncated to the minute; the
// configured duration, or the constellation's nominal orbital period.
func (r *Runner) resolveWindow(id constellation.ID, params constellation.Params) (visibility.Window, error) {
	start, err := r.cfg.Window.StartTime()
	if err != nil {
		return visibility.Window{}, err
	}
	if start.IsZero() {
		ds := r.store.Get(id)
		if ds == nil {
			return visibility.Window{}, fmt.Errorf("no dataset loaded for %s", id)
		}
		start = ds.EpochRange.Max.UTC().Truncate(time.Minute)
	}

	duration := r.cfg.Window.Duration
	if duration == 0 {
		duration = params.NominalPeriod
	}

	return visibility.Window{
		Start:    start,
		Duration: duration,
		Interval: r.cfg.Window.Interval,
	}, nil
}

// loadTLE reads TLE text for the constellation: a local file when tle.dir
// is set, otherwise the freshest cache entry, refreshed from the source URL
// when auto-fetch is on and the cache is empty or stale. A failed refresh
// falls back to stale cache data rather than failing the run.
func (r *Runner) loadTLE(ctx context.Context, id constellation.ID) ([]byte, string, time.Time, error) {
	if r.cfg.TLE.Dir != "" {
		path := filepath.Join(r.cfg.TLE.Dir, string(id)+".tle")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", time.Time{}, fmt.Errorf("local TLE file: %w", err)
		}
		fetchedAt := time.Now()
		if fi, statErr := os.Stat(path); statErr == nil {
			fetchedAt = fi.ModTime()
		}
		return data, path, fetchedAt, nil
	}

	cache := tle.NewCache(r.cfg.TLE.CacheDir, r.cfg.TLE.CacheMaxFiles)
	data, ts, cacheErr := cache.LoadLatest(id)
	fresh := cacheErr == nil && time.Since(ts) <= r.cfg.TLE.MaxAge

	if fresh || (cacheErr == nil && !r.cfg.TLE.AutoFetch) {
		return data, "cache", ts, nil
	}
	if !r.cfg.TLE.AutoFetch {
		return nil, "", time.Time{}, fmt.Errorf("no cached TLE data for %s: %w", id, cacheErr)
	}

	cc := r.cfg.Constellation(id)
	fetched, fetchErr := tle.NewFetcher(cc.SourceURL, r.logger).Fetch(ctx)
	if fetchErr != nil {
		if cacheErr == nil {
			r.logger.Warn("TLE refresh failed, using stale cache",
				"constellation", id, "cached_at", ts, "error", fetchErr)
			return data, "cache", ts, nil
		}
		return nil, "", time.Time{}, fmt.Errorf("fetching TLE data: %w", fetchErr)
	}

	now := time.Now()
	if err := cache.Write(id, fetched, now); err != nil {
		r.logger.Warn("TLE cache write failed", "constellation", id, "error", err)
	}
	return fetched, cc.SourceURL, now, nil
}
