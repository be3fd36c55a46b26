// Command satpool selects dynamic satellite coverage pools: it loads TLE
// catalogs, propagates orbits, builds observer visibility series, and picks
// per-constellation pools that hold the visible-satellite count inside the
// configured bounds.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cedarwud/ntn-stack-sub027/internal/api"
	"github.com/cedarwud/ntn-stack-sub027/internal/config"
	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/health"
	"github.com/cedarwud/ntn-stack-sub027/internal/pipeline"
	"github.com/cedarwud/ntn-stack-sub027/internal/propagation"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/transform"
	"github.com/cedarwud/ntn-stack-sub027/internal/visibility"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "satpool",
		Short: "Dynamic satellite coverage pool selection",
		Long: `satpool computes observer visibility for LEO constellations and selects
per-constellation satellite pools whose simultaneously-visible count stays
inside configured bounds across a full orbital period.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML configuration file")
	root.AddCommand(newRunCmd(), newFetchCmd(), newInspectCmd())
	return root
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	return cfg, logger, nil
}

func newRunCmd() *cobra.Command {
	var (
		format  string
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full selection pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var ops *api.Server
			if cfg.Metrics.Listen != "" {
				ops = api.NewServer(cfg.Metrics.Listen, logger)
				go func() {
					if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("ops server failed", "error", err)
					}
				}()
			}
			health.SetReady(true)

			res, runErr := pipeline.NewRunner(cfg, logger).Run(ctx)

			if ops != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := ops.Shutdown(shutdownCtx); err != nil {
					logger.Warn("ops server shutdown failed", "error", err)
				}
			}

			out := io.Writer(cmd.OutOrStdout())
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := pipeline.WriteResult(out, res, format); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			if res.AllFailed() {
				return errors.New("all constellations failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().StringVar(&outPath, "out", "", "write the result to this file instead of stdout")
	return cmd
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and cache TLE sources for the configured constellations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cache := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.CacheMaxFiles)
			failed := 0
			ids := cfg.EnabledConstellations()

			for _, id := range ids {
				cc := cfg.Constellation(id)
				data, err := tle.NewFetcher(cc.SourceURL, logger).Fetch(ctx)
				if err != nil {
					logger.Error("fetch failed", "constellation", id, "error", err)
					failed++
					continue
				}
				if err := cache.Write(id, data, time.Now()); err != nil {
					logger.Error("cache write failed", "constellation", id, "error", err)
					failed++
					continue
				}
				loaded, err := tle.Load(bytes.NewReader(data), id, logger)
				if err != nil {
					logger.Error("parse failed", "constellation", id, "error", err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: cached %d records (%d excluded) from %s\n",
					id, len(loaded.Records), len(loaded.Excluded), cc.SourceURL)
			}

			if failed == len(ids) {
				return errors.New("every fetch failed")
			}
			return nil
		},
	}
	return cmd
}

func newInspectCmd() *cobra.Command {
	var satNum int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Visibility diagnostic for a single satellite",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			rec, id, err := findRecord(cfg, logger, satNum)
			if err != nil {
				return err
			}

			el, err := tle.ParseElements(rec)
			if err != nil {
				return err
			}

			catalog := cfg.Catalog()
			params, ok := catalog.Params(id)
			if !ok {
				return fmt.Errorf("no parameters for constellation %s", id)
			}

			start, err := cfg.Window.StartTime()
			if err != nil {
				return err
			}
			if start.IsZero() {
				start = rec.Epoch.UTC().Truncate(time.Minute)
			}
			duration := cfg.Window.Duration
			if duration == 0 {
				duration = params.NominalPeriod
			}
			w := visibility.Window{Start: start, Duration: duration, Interval: cfg.Window.Interval}

			observer := transform.NewObserver(cfg.Observer.LatitudeDeg, cfg.Observer.LongitudeDeg, cfg.Observer.AltitudeM)
			pool := propagation.NewPool(cfg.Workers, logger)
			series, err := visibility.NewBuilder(observer, params.MinElevationDeg, pool, nil, logger).Build(rec, w)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (catalog %d, %s)\n", rec.Name, rec.CatalogNumber, id)
			fmt.Fprintf(out, "elements: incl=%.2f° raan=%.2f° alt=%.0fkm period=%.1fmin\n",
				el.InclinationDeg, el.RAANDeg, el.AltitudeKm(), el.PeriodMinutes())
			fmt.Fprintf(out, "window: %s + %s @ %s, min elevation %.1f°\n",
				w.Start.Format(time.RFC3339), w.Duration, w.Interval, params.MinElevationDeg)
			fmt.Fprintf(out, "visible: %d of %d samples\n", series.VisibleCount(), len(series.Samples))

			segments := visibility.Segments(series)
			if len(segments) == 0 {
				fmt.Fprintln(out, "no passes in window")
				return nil
			}
			for i, g := range segments {
				fmt.Fprintf(out, "  pass %d: rise=%s set=%s dur=%.0fs maxEl=%.1f°\n",
					i+1, g.Start.Format(time.RFC3339), g.End.Format(time.RFC3339),
					g.Duration().Seconds(), g.MaxElevationDeg)
			}

			printPeak(out, rec, series)
			return nil
		},
	}
	cmd.Flags().IntVar(&satNum, "satellite", 0, "NORAD catalog number")
	_ = cmd.MarkFlagRequired("satellite")
	return cmd
}

// printPeak prints the look angles and subsatellite point at the highest
// sampled elevation.
func printPeak(out io.Writer, rec tle.TLERecord, series visibility.Series) {
	peak := -1
	for i, sp := range series.Samples {
		if peak < 0 || sp.ElevationDeg > series.Samples[peak].ElevationDeg {
			peak = i
		}
	}
	if peak < 0 {
		return
	}
	sp := series.Samples[peak]

	prop, err := propagation.New(rec)
	if err != nil {
		return
	}
	sv, err := prop.At(sp.Time)
	if err != nil {
		return
	}
	ecef, _ := transform.RotateTEMEToECEF(sv.Position, sv.Velocity, transform.GMST(sp.Time))
	gp := transform.ECEFToGeodetic(ecef)

	fmt.Fprintf(out, "peak: %s el=%.1f° az=%.1f° range=%.0fkm subpoint=%.2f°,%.2f° alt=%.0fkm\n",
		sp.Time.Format(time.RFC3339), sp.ElevationDeg, sp.AzimuthDeg, sp.RangeKm,
		gp.LatDeg, gp.LonDeg, gp.AltKm)
}

// findRecord searches the enabled constellations' TLE data for one catalog
// number, reading local files when tle.dir is set and the disk cache
// otherwise.
func findRecord(cfg *config.Config, logger *slog.Logger, satNum int) (tle.TLERecord, constellation.ID, error) {
	cache := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.CacheMaxFiles)

	for _, id := range cfg.EnabledConstellations() {
		var data []byte
		var err error
		if cfg.TLE.Dir != "" {
			data, err = os.ReadFile(filepath.Join(cfg.TLE.Dir, string(id)+".tle"))
		} else {
			data, _, err = cache.LoadLatest(id)
		}
		if err != nil {
			logger.Debug("no TLE data", "constellation", id, "error", err)
			continue
		}

		loaded, err := tle.Load(bytes.NewReader(data), id, logger)
		if err != nil {
			continue
		}
		for _, rec := range loaded.Records {
			if rec.CatalogNumber == satNum {
				return rec, id, nil
			}
		}
	}
	return tle.TLERecord{}, "", fmt.Errorf("satellite %d not found in any configured TLE source", satNum)
}
