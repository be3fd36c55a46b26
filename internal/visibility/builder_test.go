package visibility

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/propagation"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/transform"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"

	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func issRecord() tle.TLERecord {
	return tle.TLERecord{
		CatalogNumber: 25544,
		Name:          "ISS (ZARYA)",
		Line1:         issLine1,
		Line2:         issLine2,
		Epoch:         time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC),
	}
}

func starlinkRecord() tle.TLERecord {
	return tle.TLERecord{
		CatalogNumber: 44713,
		Name:          "STARLINK-1007",
		Line1:         starlinkLine1,
		Line2:         starlinkLine2,
		Epoch:         time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC),
	}
}

func testObserver() transform.Observer {
	return transform.NewObserver(24.9441667, 121.3713889, 50)
}

func testWindow() Window {
	return Window{
		Start:    time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		Duration: 30 * time.Minute,
		Interval: 30 * time.Second,
	}
}

func newTestBuilder(minElevationDeg float64) *Builder {
	pool := propagation.NewPool(4, testLogger)
	return NewBuilder(testObserver(), minElevationDeg, pool, nil, testLogger)
}

func TestBuildSampleGrid(t *testing.T) {
	b := newTestBuilder(5.0)
	w := testWindow()

	series, err := b.Build(issRecord(), w)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	times := w.Times()
	if len(series.Samples) != len(times) {
		t.Fatalf("got %d samples, want %d", len(series.Samples), len(times))
	}
	if series.CatalogNumber != 25544 {
		t.Errorf("catalog number = %d, want 25544", series.CatalogNumber)
	}
	if series.PropagationFailures != 0 {
		t.Errorf("propagation failures = %d, want 0", series.PropagationFailures)
	}

	for i, sp := range series.Samples {
		if !sp.Time.Equal(times[i]) {
			t.Fatalf("sample %d: time %v does not match grid %v", i, sp.Time, times[i])
		}
		if i > 0 && !series.Samples[i-1].Time.Before(sp.Time) {
			t.Fatalf("samples not time-ascending at %d", i)
		}
	}
}

// TestBuildVisibilityThreshold checks the defining property of the Visible
// flag: true exactly when elevation reaches the threshold.
func TestBuildVisibilityThreshold(t *testing.T) {
	for _, minElev := range []float64{5.0, 10.0} {
		b := newTestBuilder(minElev)
		series, err := b.Build(issRecord(), testWindow())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		for i, sp := range series.Samples {
			want := sp.ElevationDeg >= minElev
			if sp.Visible != want {
				t.Errorf("threshold %.1f sample %d: visible=%v at elevation %.3f",
					minElev, i, sp.Visible, sp.ElevationDeg)
			}
		}
	}
}

// TestBuildDeterminism verifies that identical inputs produce identical
// series, sample for sample.
func TestBuildDeterminism(t *testing.T) {
	w := testWindow()

	first, err := newTestBuilder(5.0).Build(issRecord(), w)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := newTestBuilder(5.0).Build(issRecord(), w)
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("two builds with identical inputs produced different series")
	}
}

func TestBuildInitError(t *testing.T) {
	b := newTestBuilder(5.0)
	bad := tle.TLERecord{CatalogNumber: 1, Line1: "garbage", Line2: "garbage"}

	_, err := b.Build(bad, testWindow())
	if err == nil {
		t.Fatal("expected error for unparseable TLE")
	}
	var perr *propagation.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *propagation.Error, got %T", err)
	}
}

func TestBuildAllMatchesBuild(t *testing.T) {
	b := newTestBuilder(5.0)
	w := testWindow()
	records := []tle.TLERecord{issRecord(), starlinkRecord()}

	result, err := b.BuildAll(context.Background(), records, w)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(result.Series) != 2 {
		t.Fatalf("got %d series, want 2", len(result.Series))
	}
	if len(result.InitFailures) != 0 {
		t.Fatalf("unexpected init failures: %v", result.InitFailures)
	}

	// Input order preserved, and each series identical to a standalone build.
	for i, rec := range records {
		single, err := b.Build(rec, w)
		if err != nil {
			t.Fatalf("Build(%d) failed: %v", rec.CatalogNumber, err)
		}
		if !reflect.DeepEqual(result.Series[i], single) {
			t.Errorf("series %d: batch result differs from standalone build", i)
		}
	}
}

func TestBuildAllDropsBadRecord(t *testing.T) {
	b := newTestBuilder(5.0)
	records := []tle.TLERecord{
		issRecord(),
		{CatalogNumber: 2, Name: "BROKEN", Line1: "bad", Line2: "bad"},
	}

	result, err := b.BuildAll(context.Background(), records, testWindow())
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(result.Series) != 1 {
		t.Fatalf("got %d series, want 1", len(result.Series))
	}
	if result.Series[0].CatalogNumber != 25544 {
		t.Errorf("surviving series catalog = %d, want 25544", result.Series[0].CatalogNumber)
	}
	if len(result.InitFailures) != 1 {
		t.Fatalf("got %d init failures, want 1", len(result.InitFailures))
	}
}

func TestBuildAllEmptyWindow(t *testing.T) {
	b := newTestBuilder(5.0)
	w := Window{
		Start:    time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		Duration: -time.Minute,
		Interval: 30 * time.Second,
	}

	result, err := b.BuildAll(context.Background(), []tle.TLERecord{issRecord()}, w)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(result.Series) != 0 {
		t.Errorf("got %d series for empty window, want 0", len(result.Series))
	}
}

func TestSeriesHelpers(t *testing.T) {
	s := Series{Samples: []Sample{
		{ElevationDeg: -10, Visible: false},
		{ElevationDeg: 12, Visible: true},
		{ElevationDeg: 47, Visible: true},
		{ElevationDeg: 3, Visible: false},
	}}

	if got := s.VisibleCount(); got != 2 {
		t.Errorf("VisibleCount = %d, want 2", got)
	}
	if got := s.MaxElevationDeg(); got != 47 {
		t.Errorf("MaxElevationDeg = %v, want 47", got)
	}
}
