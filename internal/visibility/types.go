package visibility

import (
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/propagation"
)

// Sample is one observer-relative measurement of one satellite.
type Sample struct {
	Time         time.Time `json:"time"`
	ElevationDeg float64   `json:"elevation_deg"`
	AzimuthDeg   float64   `json:"azimuth_deg"`
	RangeKm      float64   `json:"range_km"`
	Visible      bool      `json:"visible"`
}

// Series is the ordered visibility time series of one satellite over one
// sampling window. Samples stay aligned with the window grid: a sample whose
// propagation failed is present but never visible, and counted in
// PropagationFailures.
type Series struct {
	CatalogNumber       int      `json:"catalog_number"`
	Samples             []Sample `json:"samples"`
	PropagationFailures int      `json:"propagation_failures"`
}

// VisibleCount returns the number of visible samples in the series.
func (s Series) VisibleCount() int {
	n := 0
	for _, sp := range s.Samples {
		if sp.Visible {
			n++
		}
	}
	return n
}

// MaxElevationDeg returns the highest sampled elevation, or -90 for an
// empty series.
func (s Series) MaxElevationDeg() float64 {
	max := -90.0
	for _, sp := range s.Samples {
		if sp.ElevationDeg > max {
			max = sp.ElevationDeg
		}
	}
	return max
}

// Window is a sampling window: inclusive start, total duration, and the
// interval between samples.
type Window struct {
	Start    time.Time
	Duration time.Duration
	Interval time.Duration
}

// End returns the last instant of the window.
func (w Window) End() time.Time {
	return w.Start.Add(w.Duration)
}

// Times returns the sampling grid: Start, Start+Interval, ... through End.
func (w Window) Times() []time.Time {
	return propagation.SampleTimes(w.Start, w.End(), w.Interval)
}
