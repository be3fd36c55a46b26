package propagation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/transform"
)

// ISS TLE (epoch 2024, will still propagate reasonably for near-future times).
// These are real ISS orbital elements used for testing.
const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

// Starlink TLE (typical LEO constellation satellite).
const (
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

// Synthetic 12-hour orbit: same elements as the ISS fixture but mean motion
// 2.0 rev/day, putting it well past the deep-space boundary.
const halfDayLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000  2.00000000    09"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func issRecord() tle.TLERecord {
	return tle.TLERecord{CatalogNumber: 25544, Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2}
}

func starlinkRecord() tle.TLERecord {
	return tle.TLERecord{CatalogNumber: 44713, Name: "STARLINK-1007", Line1: starlinkLine1, Line2: starlinkLine2}
}

// TestPropagateAt verifies that a single satellite can be propagated and
// that the resulting state is physically reasonable in both frames.
func TestPropagateAt(t *testing.T) {
	prop, err := New(issRecord())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Propagate to a time near the TLE epoch.
	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	sv, err := prop.At(target)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}

	if sv.Frame != FrameTEME {
		t.Errorf("frame = %s, want TEME", sv.Frame)
	}
	if sv.CatalogNumber != 25544 {
		t.Errorf("catalog number = %d, want 25544", sv.CatalogNumber)
	}
	if !sv.Time.Equal(target) {
		t.Errorf("time = %v, want %v", sv.Time, target)
	}

	// TEME position magnitude should be reasonable for ISS (~420 km altitude).
	// Expected: ~6371 + 420 ≈ 6791 km.
	mag := math.Sqrt(sv.Position[0]*sv.Position[0] + sv.Position[1]*sv.Position[1] + sv.Position[2]*sv.Position[2])
	if mag < 6500 || mag > 7000 {
		t.Errorf("TEME position magnitude = %.1f km, expected ~6791 km (ISS orbit)", mag)
	}

	// Transform to ECEF and verify.
	gmst := transform.GMST(target)
	ecefPos, _ := transform.RotateTEMEToECEF(sv.Position, sv.Velocity, gmst)
	if !transform.ValidateECEF(ecefPos) {
		t.Errorf("ECEF position failed validation: %v", ecefPos)
	}

	// ECEF magnitude should match TEME magnitude (pure rotation).
	ecefMag := math.Sqrt(ecefPos[0]*ecefPos[0] + ecefPos[1]*ecefPos[1] + ecefPos[2]*ecefPos[2])
	if math.Abs(ecefMag-mag) > 0.01 {
		t.Errorf("ECEF magnitude = %.3f km, TEME magnitude = %.3f km (should match)", ecefMag, mag)
	}
}

// TestNewInvalidTLE verifies that an invalid TLE returns a typed error.
func TestNewInvalidTLE(t *testing.T) {
	rec := tle.TLERecord{CatalogNumber: 99999, Line1: "invalid line 1", Line2: "invalid line 2"}
	_, err := New(rec)
	if err == nil {
		t.Fatal("expected error for invalid TLE, got nil")
	}

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if perr.CatalogNumber != 99999 {
		t.Errorf("error catalog number = %d, want 99999", perr.CatalogNumber)
	}
	if perr.Code != CodeBadElements {
		t.Errorf("error code = %d, want %d", perr.Code, CodeBadElements)
	}
}

// TestDeepSpaceBoundary verifies the near-Earth / deep-space classification.
func TestDeepSpaceBoundary(t *testing.T) {
	near, err := New(issRecord())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if near.DeepSpace() {
		t.Error("ISS orbit classified as deep space")
	}

	deep, err := New(tle.TLERecord{CatalogNumber: 25544, Line1: issLine1, Line2: halfDayLine2})
	if err != nil {
		t.Fatalf("New failed for 12h orbit: %v", err)
	}
	if !deep.DeepSpace() {
		t.Error("12-hour orbit not classified as deep space")
	}
}

// TestSeries verifies ordered series propagation over a short window.
func TestSeries(t *testing.T) {
	prop, err := New(issRecord())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	start := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Second)

	states, failures := prop.Series(start, end, 5*time.Second)
	if failures != 0 {
		t.Errorf("failures = %d, want 0", failures)
	}
	// 15s window at 5s step: samples at 0s, 5s, 10s, 15s.
	if len(states) != 4 {
		t.Fatalf("got %d states, want 4", len(states))
	}
	for i, sv := range states {
		want := start.Add(time.Duration(i) * 5 * time.Second)
		if !sv.Time.Equal(want) {
			t.Errorf("state %d: time = %v, want %v", i, sv.Time, want)
		}
		if sv.Frame != FrameTEME {
			t.Errorf("state %d: frame = %s, want TEME", i, sv.Frame)
		}
	}
}

func TestSampleTimes(t *testing.T) {
	start := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

	times := SampleTimes(start, start.Add(90*time.Second), 30*time.Second)
	if len(times) != 4 {
		t.Fatalf("got %d sample times, want 4", len(times))
	}
	if !times[3].Equal(start.Add(90 * time.Second)) {
		t.Errorf("last sample = %v, want end included", times[3])
	}

	if got := SampleTimes(start, start.Add(-time.Second), 30*time.Second); got != nil {
		t.Errorf("inverted window returned %v, want nil", got)
	}
}

// TestPoolRunWritesSlots verifies the pool computes every index into its own
// output slot.
func TestPoolRunWritesSlots(t *testing.T) {
	pool := NewPool(4, testLogger())
	records := []tle.TLERecord{issRecord(), starlinkRecord()}
	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

	states := make([]StateVector, len(records))
	errs := make([]error, len(records))

	err := pool.Run(context.Background(), len(records), func(i int) {
		prop, perr := New(records[i])
		if perr != nil {
			errs[i] = perr
			return
		}
		states[i], errs[i] = prop.At(target)
	})
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	for i := range records {
		if errs[i] != nil {
			t.Fatalf("slot %d: %v", i, errs[i])
		}
		if states[i].CatalogNumber != records[i].CatalogNumber {
			t.Errorf("slot %d: catalog %d, want %d", i, states[i].CatalogNumber, records[i].CatalogNumber)
		}
		mag := math.Sqrt(states[i].Position[0]*states[i].Position[0] +
			states[i].Position[1]*states[i].Position[1] +
			states[i].Position[2]*states[i].Position[2])
		if mag < 6500 || mag > 7100 {
			t.Errorf("slot %d: position magnitude %.1f km out of LEO band", i, mag)
		}
	}
}

// TestPoolCancellation verifies the pool stops submitting work on
// cancellation while keeping already-written slots valid.
func TestPoolCancellation(t *testing.T) {
	pool := NewPool(2, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately.

	const n = 100
	var done [n]bool
	err := pool.Run(ctx, n, func(i int) {
		done[i] = true
	})
	if err == nil {
		t.Fatal("expected context error from cancelled run")
	}

	completed := 0
	for _, d := range done {
		if d {
			completed++
		}
	}
	// Some jobs may slip through before cancellation propagates, but not all.
	if completed >= n {
		t.Errorf("completed %d/%d jobs despite cancelled context", completed, n)
	}
}

// BenchmarkPropagate1000 benchmarks propagating 1000 satellites to one instant.
func BenchmarkPropagate1000(b *testing.B) {
	pool := NewPool(4, testLogger())

	props := make([]*Propagator, 1000)
	for i := range props {
		p, err := New(issRecord())
		if err != nil {
			b.Fatal(err)
		}
		props[i] = p
	}

	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	states := make([]StateVector, len(props))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := pool.Run(ctx, len(props), func(j int) {
			states[j], _ = props[j].At(target)
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
