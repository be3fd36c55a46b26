// Package visibility turns TLE records into observer-relative time series:
// for every satellite and every sample instant, elevation, azimuth, slant
// range, and the visibility flag derived from the constellation's minimum
// elevation threshold.
//
// Building a series is a pure function of the TLE, the observer, and the
// window; invoking it twice with identical inputs yields identical output.
// That makes the per-satellite work embarrassingly parallel: BuildAll fans
// satellites out across a worker pool, each writing into its own result
// slot, with GMST precomputed once per sample instant for the whole batch.
package visibility

import (
	"context"
	"log/slog"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/propagation"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/transform"
)

// Builder computes visibility series against one fixed observer and one
// minimum elevation threshold.
type Builder struct {
	observer        transform.Observer
	minElevationDeg float64
	pool            *propagation.Pool
	cache           *Cache // nil disables series caching
	logger          *slog.Logger
}

// NewBuilder creates a Builder. cache may be nil to disable on-disk reuse of
// computed series.
func NewBuilder(observer transform.Observer, minElevationDeg float64, pool *propagation.Pool, cache *Cache, logger *slog.Logger) *Builder {
	return &Builder{
		observer:        observer,
		minElevationDeg: minElevationDeg,
		pool:            pool,
		cache:           cache,
		logger:          logger,
	}
}

// MinElevationDeg returns the visibility threshold this builder applies.
func (b *Builder) MinElevationDeg() float64 {
	return b.minElevationDeg
}

// Build computes the visibility series for a single satellite over the
// window. Model initialization failure returns the propagation error; a
// per-sample failure drops only that sample's visibility.
func (b *Builder) Build(rec tle.TLERecord, w Window) (Series, error) {
	prop, err := propagation.New(rec)
	if err != nil {
		return Series{}, err
	}

	times := w.Times()
	gmst := make([]float64, len(times))
	for i, t := range times {
		gmst[i] = transform.GMST(t)
	}

	return b.build(prop, rec, w, times, gmst), nil
}

func (b *Builder) build(prop *propagation.Propagator, rec tle.TLERecord, w Window, times []time.Time, gmst []float64) Series {
	if b.cache != nil {
		if s, ok := b.cache.Load(rec, b.observer, w, b.minElevationDeg); ok {
			return s
		}
	}

	samples := make([]Sample, len(times))
	failures := 0

	for i, t := range times {
		sv, err := prop.At(t)
		if err != nil {
			samples[i] = Sample{Time: t}
			failures++
			continue
		}

		ecefPos, _ := transform.RotateTEMEToECEF(sv.Position, sv.Velocity, gmst[i])
		la := b.observer.LookAnglesTo(ecefPos)

		samples[i] = Sample{
			Time:         t,
			ElevationDeg: la.ElevationDeg,
			AzimuthDeg:   la.AzimuthDeg,
			RangeKm:      la.RangeKm,
			Visible:      la.ElevationDeg >= b.minElevationDeg,
		}
	}

	s := Series{
		CatalogNumber:       prop.CatalogNumber(),
		Samples:             samples,
		PropagationFailures: failures,
	}

	if b.cache != nil {
		if err := b.cache.Store(rec, b.observer, w, b.minElevationDeg, s); err != nil {
			b.logger.Warn("series cache write failed", "catalog_number", rec.CatalogNumber, "error", err)
		}
	}

	return s
}

// BuildResult holds the series of one batch build plus the satellites
// dropped because the orbital model rejected their TLE.
type BuildResult struct {
	Series              []Series // input order, dropped satellites removed
	InitFailures        []error
	PropagationFailures int // failed samples summed across all series
}

// BuildAll computes series for every record in parallel. Each satellite
// writes into its own slot; the sample grid and per-instant GMST are shared
// read-only across the batch. On cancellation the completed series are still
// returned together with the context error.
func (b *Builder) BuildAll(ctx context.Context, records []tle.TLERecord, w Window) (BuildResult, error) {
	times := w.Times()
	if len(times) == 0 {
		return BuildResult{}, nil
	}

	gmst := make([]float64, len(times))
	for i, t := range times {
		gmst[i] = transform.GMST(t)
	}

	slots := make([]Series, len(records))
	errs := make([]error, len(records))
	built := make([]bool, len(records))

	runErr := b.pool.Run(ctx, len(records), func(i int) {
		prop, err := propagation.New(records[i])
		if err != nil {
			errs[i] = err
			return
		}
		slots[i] = b.build(prop, records[i], w, times, gmst)
		built[i] = true
	})

	var result BuildResult
	for i := range records {
		switch {
		case errs[i] != nil:
			result.InitFailures = append(result.InitFailures, errs[i])
			b.logger.Warn("satellite dropped at model init",
				"catalog_number", records[i].CatalogNumber,
				"error", errs[i],
			)
		case built[i]:
			result.Series = append(result.Series, slots[i])
			result.PropagationFailures += slots[i].PropagationFailures
		}
	}

	return result, runErr
}
