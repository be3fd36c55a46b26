// Package scoring ranks candidate satellites for pool selection.
//
// Per-satellite scores blend static orbital geometry (inclination
// suitability, altitude optimality) with observed behaviour over the sampled
// window (visible fraction, elevation reached, sustained segments). Set-level
// diversity uses circular statistics for RAAN because plain variance is
// meaningless for angles that wrap at 360°.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/visibility"
)

// Weights control the blend of the per-satellite score components. They
// should sum to 1 so Total stays on the same 0-100 scale as the components.
type Weights struct {
	Visibility  float64 `json:"visibility"`
	Inclination float64 `json:"inclination"`
	Altitude    float64 `json:"altitude"`
	Continuity  float64 `json:"continuity"`
}

// DefaultWeights favours observed visibility over static geometry.
func DefaultWeights() Weights {
	return Weights{
		Visibility:  0.40,
		Inclination: 0.25,
		Altitude:    0.20,
		Continuity:  0.15,
	}
}

// Score is the quality breakdown for one satellite. Total and the four
// components are on a 0-100 scale; DiversityContribution is the marginal
// change on the 0-1 set-diversity scale and is filled in by the selector,
// not by ScoreSatellite.
type Score struct {
	CatalogNumber         int     `json:"catalog_number"`
	Total                 float64 `json:"total"`
	Visibility            float64 `json:"visibility"`
	Inclination           float64 `json:"inclination"`
	Altitude              float64 `json:"altitude"`
	Continuity            float64 `json:"continuity"`
	DiversityContribution float64 `json:"diversity_contribution"`
}

// Scoring references. Fractions and segment lengths at or above the
// reference earn the full 100 for that statistic.
const (
	visibleFractionRef   = 0.30 // visible duty fraction worth 100
	longestSegmentRefMin = 8.0  // minutes of sustained pass worth 100
	meanSegmentRefMin    = 5.0

	rampTopDeg       = 80.0 // inclination where suitability plateaus
	polarTaperPerDeg = 0.5

	// LEO operating band used for altitude scoring when the constellation
	// has no shell table to supply a nominal altitude.
	genericAltMinKm = 400.0
	genericAltMaxKm = 1200.0
	altPenaltyPerKm = 0.2

	raanDispersionWeight    = 0.6
	inclinationSpreadWeight = 0.4
	inclinationSpreadRefDeg = 10.0
)

// Scorer rates candidates of one constellation against a fixed observer.
type Scorer struct {
	constellation  constellation.ID
	catalog        *constellation.Catalog
	observerLatDeg float64
	weights        Weights
}

// NewScorer builds a scorer for the given constellation. A nil catalog falls
// back to the built-in shell table.
func NewScorer(id constellation.ID, catalog *constellation.Catalog, observerLatDeg float64, w Weights) *Scorer {
	if catalog == nil {
		catalog = constellation.DefaultCatalog()
	}
	return &Scorer{
		constellation:  id,
		catalog:        catalog,
		observerLatDeg: observerLatDeg,
		weights:        w,
	}
}

// ScoreSatellite rates one satellite from its orbital elements and its
// sampled visibility series. Pure function of its inputs.
func (s *Scorer) ScoreSatellite(el tle.OrbitalElements, series visibility.Series) Score {
	sc := Score{
		CatalogNumber: series.CatalogNumber,
		Visibility:    s.visibilityScore(series),
		Inclination:   s.inclinationScore(el.InclinationDeg),
		Altitude:      s.altitudeScore(el),
		Continuity:    s.continuityScore(series),
	}
	sc.Total = s.weights.Visibility*sc.Visibility +
		s.weights.Inclination*sc.Inclination +
		s.weights.Altitude*sc.Altitude +
		s.weights.Continuity*sc.Continuity
	return sc
}

// inclinationScore rates how well an inclination serves the observer
// latitude. Below the latitude the ground track never reaches the observer.
// Above it suitability ramps to a plateau at 80°, then tapers slightly
// toward polar where the extra inclination overshoots the need. Retrograde
// orbits cover the same latitude band as their prograde mirror.
func (s *Scorer) inclinationScore(inclDeg float64) float64 {
	lat := math.Abs(s.observerLatDeg)
	incl := inclDeg
	if incl > 90 {
		incl = 180 - incl
	}
	if incl < lat {
		return 0
	}
	if incl >= rampTopDeg {
		return clampScore(100 - (incl-rampTopDeg)*polarTaperPerDeg)
	}
	return clampScore((incl - lat) / (rampTopDeg - lat) * 100)
}

// visibilityScore blends the visible duty fraction with the maximum
// elevation reached and the mean elevation while visible.
func (s *Scorer) visibilityScore(series visibility.Series) float64 {
	n := len(series.Samples)
	if n == 0 {
		return 0
	}

	visible := 0
	sumVisibleEl := 0.0
	maxEl := series.Samples[0].ElevationDeg
	for _, sm := range series.Samples {
		if sm.Visible {
			visible++
			sumVisibleEl += sm.ElevationDeg
		}
		if sm.ElevationDeg > maxEl {
			maxEl = sm.ElevationDeg
		}
	}

	fraction := float64(visible) / float64(n)
	fractionScore := clampScore(fraction / visibleFractionRef * 100)
	maxElScore := clampScore(2 * maxEl)
	meanElScore := 0.0
	if visible > 0 {
		meanElScore = clampScore(2 * sumVisibleEl / float64(visible))
	}
	return 0.5*fractionScore + 0.25*maxElScore + 0.25*meanElScore
}

// altitudeScore peaks at the constellation's nearest nominal shell altitude.
// Constellations without a shell table score against a broad LEO band
// instead.
func (s *Scorer) altitudeScore(el tle.OrbitalElements) float64 {
	alt := el.AltitudeKm()

	var dev float64
	if shells := s.catalog.Shells(s.constellation); len(shells) > 0 {
		dev = math.MaxFloat64
		for _, sh := range shells {
			if d := math.Abs(alt - sh.AltitudeKm); d < dev {
				dev = d
			}
		}
	} else {
		switch {
		case alt < genericAltMinKm:
			dev = genericAltMinKm - alt
		case alt > genericAltMaxKm:
			dev = alt - genericAltMaxKm
		}
	}
	return clampScore(100 - altPenaltyPerKm*dev)
}

// continuityScore rewards sustained passes over many short flickers. The
// longest contiguous visible segment dominates; the mean segment length
// covers the rest.
func (s *Scorer) continuityScore(series visibility.Series) float64 {
	segs := visibility.Segments(series)
	if len(segs) == 0 {
		return 0
	}

	longest := 0.0
	total := 0.0
	for _, seg := range segs {
		d := seg.Duration().Minutes()
		if d > longest {
			longest = d
		}
		total += d
	}
	mean := total / float64(len(segs))

	longestScore := clampScore(longest / longestSegmentRefMin * 100)
	meanScore := clampScore(mean / meanSegmentRefMin * 100)
	return 0.6*longestScore + 0.4*meanScore
}

// SetDiversity measures the orbital spread of a candidate set on a 0-1
// scale. RAAN dispersion is 1 − |mean resultant vector| of the RAAN angles
// mapped to unit vectors: 0 when every satellite shares one ascending node,
// approaching 1 when the nodes ring the full circle. Inclination spread is
// the population standard deviation normalized by 10° and capped at 1.
func SetDiversity(elements []tle.OrbitalElements) float64 {
	if len(elements) == 0 {
		return 0
	}
	dispersion, spreadDeg := DiversityComponents(elements)
	spread := spreadDeg / inclinationSpreadRefDeg
	if spread > 1 {
		spread = 1
	}
	return raanDispersionWeight*dispersion + inclinationSpreadWeight*spread
}

// DiversityComponents returns the raw RAAN circular dispersion (0-1) and
// the inclination population standard deviation in degrees.
func DiversityComponents(elements []tle.OrbitalElements) (raanDispersion, inclinationSpreadDeg float64) {
	if len(elements) == 0 {
		return 0, 0
	}

	var sx, sy float64
	incls := make([]float64, len(elements))
	for i, el := range elements {
		r := el.RAANDeg * math.Pi / 180
		sx += math.Cos(r)
		sy += math.Sin(r)
		incls[i] = el.InclinationDeg
	}
	n := float64(len(elements))
	raanDispersion = 1 - math.Hypot(sx, sy)/n
	inclinationSpreadDeg = stat.PopStdDev(incls, nil)
	return raanDispersion, inclinationSpreadDeg
}

// MarginalDiversity is the set-diversity change from adding candidate to
// set. Negative values mean the candidate bunches the set up.
func MarginalDiversity(set []tle.OrbitalElements, candidate tle.OrbitalElements) float64 {
	grown := make([]tle.OrbitalElements, 0, len(set)+1)
	grown = append(grown, set...)
	grown = append(grown, candidate)
	return SetDiversity(grown) - SetDiversity(set)
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
