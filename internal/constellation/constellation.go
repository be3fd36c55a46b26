// Package constellation defines the supported LEO constellations, their
// nominal shell designs, and the per-constellation selection parameters.
//
// Shell tables are immutable after construction and are injected into the
// grouper and scorer rather than read from package state, so tests can run
// against alternate constellation definitions.
package constellation

import (
	"math"
	"sort"
	"strings"
	"time"
)

// ID identifies a constellation.
type ID string

const (
	Starlink ID = "starlink"
	OneWeb   ID = "oneweb"
	Other    ID = "other"
)

// FromName classifies a satellite by its catalog name.
func FromName(name string) ID {
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "STARLINK"):
		return Starlink
	case strings.HasPrefix(upper, "ONEWEB"):
		return OneWeb
	default:
		return Other
	}
}

// Shell describes one nominal altitude/inclination/plane-count design
// within a constellation.
type Shell struct {
	Constellation  ID
	AltitudeKm     float64
	InclinationDeg float64
	PlaneCount     int
	SatsPerPlane   int
}

// PlaneSpacingDeg returns the nominal RAAN spacing between adjacent planes.
func (s Shell) PlaneSpacingDeg() float64 {
	if s.PlaneCount <= 0 {
		return 360.0
	}
	return 360.0 / float64(s.PlaneCount)
}

// Params holds the per-constellation visibility and selection parameters.
type Params struct {
	MinElevationDeg float64
	MinVisible      int
	MaxVisible      int
	TargetCount     int
	NominalPeriod   time.Duration
}

// Shell matching tolerances. A satellite whose elements fall outside these
// bands of every known shell takes the generic grouping path.
const (
	inclinationToleranceDeg = 3.0
	altitudeToleranceKm     = 150.0
)

// Catalog is an immutable lookup of shells and parameters.
type Catalog struct {
	shells []Shell
	params map[ID]Params
}

// NewCatalog builds a catalog from explicit shell and parameter tables.
// The inputs are copied; later mutation of the arguments has no effect.
func NewCatalog(shells []Shell, params map[ID]Params) *Catalog {
	c := &Catalog{
		shells: make([]Shell, len(shells)),
		params: make(map[ID]Params, len(params)),
	}
	copy(c.shells, shells)
	for id, p := range params {
		c.params[id] = p
	}
	return c
}

// DefaultCatalog returns the built-in Starlink/OneWeb shell designs and
// selection parameters.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		[]Shell{
			{Constellation: Starlink, AltitudeKm: 550, InclinationDeg: 53.0, PlaneCount: 72, SatsPerPlane: 22},
			{Constellation: Starlink, AltitudeKm: 540, InclinationDeg: 53.2, PlaneCount: 72, SatsPerPlane: 22},
			{Constellation: Starlink, AltitudeKm: 570, InclinationDeg: 70.0, PlaneCount: 36, SatsPerPlane: 20},
			{Constellation: OneWeb, AltitudeKm: 1200, InclinationDeg: 87.4, PlaneCount: 18, SatsPerPlane: 36},
		},
		map[ID]Params{
			Starlink: {
				MinElevationDeg: 5.0,
				MinVisible:      10,
				MaxVisible:      15,
				TargetCount:     12,
				NominalPeriod:   96 * time.Minute,
			},
			OneWeb: {
				MinElevationDeg: 10.0,
				MinVisible:      3,
				MaxVisible:      6,
				TargetCount:     4,
				NominalPeriod:   109 * time.Minute,
			},
		},
	)
}

// Shells returns the shells registered for the given constellation.
func (c *Catalog) Shells(id ID) []Shell {
	var out []Shell
	for _, s := range c.shells {
		if s.Constellation == id {
			out = append(out, s)
		}
	}
	return out
}

// AllShells returns a copy of every registered shell.
func (c *Catalog) AllShells() []Shell {
	out := make([]Shell, len(c.shells))
	copy(out, c.shells)
	return out
}

// Params returns the selection parameters for the given constellation.
func (c *Catalog) Params(id ID) (Params, bool) {
	p, ok := c.params[id]
	return p, ok
}

// IDs returns the constellations with registered parameters, sorted for
// deterministic iteration order.
func (c *Catalog) IDs() []ID {
	ids := make([]ID, 0, len(c.params))
	for id := range c.params {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MatchShell finds the shell closest to the given inclination and altitude
// within the matching tolerances. Returns false when no shell qualifies,
// which routes the satellite to the generic grouping path.
func (c *Catalog) MatchShell(id ID, inclinationDeg, altitudeKm float64) (Shell, bool) {
	best := Shell{}
	bestDist := math.MaxFloat64
	found := false

	for _, s := range c.shells {
		if s.Constellation != id {
			continue
		}
		dIncl := math.Abs(s.InclinationDeg - inclinationDeg)
		dAlt := math.Abs(s.AltitudeKm - altitudeKm)
		if dIncl > inclinationToleranceDeg || dAlt > altitudeToleranceKm {
			continue
		}
		// Normalized distance so a degree of inclination and 50 km of
		// altitude weigh comparably.
		dist := dIncl/inclinationToleranceDeg + dAlt/altitudeToleranceKm
		if dist < bestDist {
			bestDist = dist
			best = s
			found = true
		}
	}

	return best, found
}
