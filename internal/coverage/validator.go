// Package coverage replays a selected pool's visibility series and checks
// the simultaneous-visible-count bounds the pool was chosen to satisfy.
package coverage

import (
	"math"
	"sort"
	"time"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/visibility"
)

// Bounds are the simultaneous-visibility targets for one constellation.
type Bounds struct {
	TargetMin int `json:"target_min"`
	TargetMax int `json:"target_max"`
}

// HandoverEvent records a pool membership change at one sample time.
// Entering and Leaving hold catalog numbers in ascending order; at least
// one of them is non-empty.
type HandoverEvent struct {
	Time     time.Time `json:"time"`
	Entering []int     `json:"entering,omitempty"`
	Leaving  []int     `json:"leaving,omitempty"`
}

// ThresholdShare is the fraction of sample times at which at least one pool
// member sits at or above the elevation threshold, regardless of the
// configured visibility cutoff. The 5°/10°/15° ladder shows how much
// coverage margin a stricter cutoff would leave.
type ThresholdShare struct {
	ThresholdDeg float64 `json:"threshold_deg"`
	Share        float64 `json:"share"`
}

// Azimuth sectors for the spatial-spread diagnostic.
const (
	sectorCount    = 8
	sectorWidthDeg = 45.0
)

var thresholdLadderDeg = []float64{5, 10, 15}

// Report is the full coverage verdict for one pool over one sampling
// window. Compliant applies the tolerance-relaxed bounds; the margins are
// always reported against the unrelaxed targets.
type Report struct {
	Constellation constellation.ID `json:"constellation"`
	Bounds        Bounds           `json:"bounds"`
	Tolerance     int              `json:"tolerance"`

	Times         []time.Time `json:"times"`
	VisibleCounts []int       `json:"visible_counts"`

	MinVisible  int     `json:"min_visible"`
	MaxVisible  int     `json:"max_visible"`
	MeanVisible float64 `json:"mean_visible"`

	Handovers []HandoverEvent `json:"handovers"`

	Compliant  bool `json:"compliant"`
	MarginLow  int  `json:"margin_low"`  // MinVisible − TargetMin
	MarginHigh int  `json:"margin_high"` // TargetMax − MaxVisible

	ThresholdShares []ThresholdShare `json:"threshold_shares"`
	SectorsCovered  int              `json:"sectors_covered"` // of 8 azimuth sectors
}

// Validate replays the members' series and reports counts, handover events
// and the compliance verdict. Members whose series are missing count as
// never visible. A tolerance relaxes both bounds symmetrically; zero keeps
// them hard.
func Validate(id constellation.ID, members []int, series map[int]visibility.Series, b Bounds, tolerance int) Report {
	r := Report{Constellation: id, Bounds: b, Tolerance: tolerance}

	ms := append([]int(nil), members...)
	sort.Ints(ms)

	r.Times = sampleGrid(ms, series)
	n := len(r.Times)
	if n > 0 {
		r.VisibleCounts = make([]int, n)
	}

	minV, maxV, sum := math.MaxInt, 0, 0
	var prev []int
	var sectors [sectorCount]bool
	thresholdHits := make([]int, len(thresholdLadderDeg))

	for i := 0; i < n; i++ {
		cur := make([]int, 0, len(ms))
		anyAbove := make([]bool, len(thresholdLadderDeg))

		for _, m := range ms {
			s, ok := series[m]
			if !ok || i >= len(s.Samples) {
				continue
			}
			smp := s.Samples[i]
			if smp.Visible {
				cur = append(cur, m)
				sectors[sectorIndex(smp.AzimuthDeg)] = true
			}
			for j, th := range thresholdLadderDeg {
				if smp.ElevationDeg >= th {
					anyAbove[j] = true
				}
			}
		}

		c := len(cur)
		r.VisibleCounts[i] = c
		sum += c
		if c < minV {
			minV = c
		}
		if c > maxV {
			maxV = c
		}
		for j, hit := range anyAbove {
			if hit {
				thresholdHits[j]++
			}
		}

		if i > 0 {
			entering, leaving := setDiff(prev, cur)
			if len(entering) > 0 || len(leaving) > 0 {
				r.Handovers = append(r.Handovers, HandoverEvent{
					Time:     r.Times[i],
					Entering: entering,
					Leaving:  leaving,
				})
			}
		}
		prev = cur
	}

	if n == 0 {
		minV = 0
	} else {
		r.MeanVisible = float64(sum) / float64(n)
	}
	r.MinVisible = minV
	r.MaxVisible = maxV

	r.Compliant = minV >= b.TargetMin-tolerance && maxV <= b.TargetMax+tolerance
	r.MarginLow = minV - b.TargetMin
	r.MarginHigh = b.TargetMax - maxV

	r.ThresholdShares = make([]ThresholdShare, len(thresholdLadderDeg))
	for j, th := range thresholdLadderDeg {
		share := 0.0
		if n > 0 {
			share = float64(thresholdHits[j]) / float64(n)
		}
		r.ThresholdShares[j] = ThresholdShare{ThresholdDeg: th, Share: share}
	}
	for _, covered := range sectors {
		if covered {
			r.SectorsCovered++
		}
	}
	return r
}

// TotalViolation sums the per-sample distance outside the tolerance-relaxed
// bounds. Zero for a compliant report; the selector uses it to rank repair
// attempts.
func (r Report) TotalViolation() int {
	effMin := r.Bounds.TargetMin - r.Tolerance
	effMax := r.Bounds.TargetMax + r.Tolerance
	total := 0
	for _, c := range r.VisibleCounts {
		if c < effMin {
			total += effMin - c
		}
		if c > effMax {
			total += c - effMax
		}
	}
	return total
}

// DeficitSamples returns the indices of samples below the relaxed lower
// bound.
func (r Report) DeficitSamples() []int {
	effMin := r.Bounds.TargetMin - r.Tolerance
	var out []int
	for i, c := range r.VisibleCounts {
		if c < effMin {
			out = append(out, i)
		}
	}
	return out
}

// SurplusSamples returns the indices of samples above the relaxed upper
// bound.
func (r Report) SurplusSamples() []int {
	effMax := r.Bounds.TargetMax + r.Tolerance
	var out []int
	for i, c := range r.VisibleCounts {
		if c > effMax {
			out = append(out, i)
		}
	}
	return out
}

// sampleGrid takes the time grid from the longest member series. Series
// built from one window share the grid; a shorter series simply stops
// contributing counts early.
func sampleGrid(members []int, series map[int]visibility.Series) []time.Time {
	var best []visibility.Sample
	for _, m := range members {
		if s, ok := series[m]; ok && len(s.Samples) > len(best) {
			best = s.Samples
		}
	}
	if len(best) == 0 {
		return nil
	}
	times := make([]time.Time, len(best))
	for i, smp := range best {
		times[i] = smp.Time
	}
	return times
}

// setDiff computes entering (in cur, not prev) and leaving (in prev, not
// cur) for two ascending catalog-number slices.
func setDiff(prev, cur []int) (entering, leaving []int) {
	i, j := 0, 0
	for i < len(prev) && j < len(cur) {
		switch {
		case prev[i] == cur[j]:
			i++
			j++
		case prev[i] < cur[j]:
			leaving = append(leaving, prev[i])
			i++
		default:
			entering = append(entering, cur[j])
			j++
		}
	}
	leaving = append(leaving, prev[i:]...)
	entering = append(entering, cur[j:]...)
	return entering, leaving
}

func sectorIndex(azimuthDeg float64) int {
	idx := int(azimuthDeg / sectorWidthDeg)
	if idx < 0 || idx >= sectorCount {
		idx = ((idx % sectorCount) + sectorCount) % sectorCount
	}
	return idx
}
