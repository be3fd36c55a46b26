// Package planes classifies satellites into discrete orbital-plane buckets
// from quantized inclination and RAAN, following each constellation's shell
// design.
package planes

import (
	"fmt"
	"math"
	"sort"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
)

// Satellite pairs a catalog number with its parsed orbital elements.
type Satellite struct {
	CatalogNumber int
	Elements      tle.OrbitalElements
}

// Group is one orbital-plane bucket and its members. Membership is a
// classification, not ownership; the same satellites can be regrouped at any
// time from their elements.
type Group struct {
	PlaneID        string
	InclinationDeg float64
	RAANCenterDeg  float64
	Members        []int
}

// Generic quantization for satellites matching no known shell.
const (
	genericInclinationBinDeg = 5.0
	genericRAANBinDeg        = 30.0
)

// Grouper assigns satellites of one constellation to plane buckets using
// the injected shell table.
type Grouper struct {
	constellation constellation.ID
	catalog       *constellation.Catalog
}

// NewGrouper creates a Grouper for one constellation.
func NewGrouper(id constellation.ID, catalog *constellation.Catalog) *Grouper {
	return &Grouper{constellation: id, catalog: catalog}
}

// Group classifies every satellite into exactly one plane bucket.
//
// A satellite matching a known shell is bucketed by rounding its RAAN to the
// nearest multiple of the shell's plane spacing, modulo the plane count, so
// RAAN values just under 360° and just above 0° land in the same wrapped
// plane. Satellites matching no shell get a composite key from 5°
// inclination and 30° RAAN bins.
func (g *Grouper) Group(sats []Satellite) map[string]Group {
	groups := make(map[string]Group)

	for _, sat := range sats {
		planeID, incl, center := g.classify(sat.Elements)

		grp, ok := groups[planeID]
		if !ok {
			grp = Group{PlaneID: planeID, InclinationDeg: incl, RAANCenterDeg: center}
		}
		grp.Members = append(grp.Members, sat.CatalogNumber)
		groups[planeID] = grp
	}

	return groups
}

func (g *Grouper) classify(el tle.OrbitalElements) (planeID string, inclinationDeg, raanCenterDeg float64) {
	shell, ok := g.catalog.MatchShell(g.constellation, el.InclinationDeg, el.AltitudeKm())
	if ok {
		bucket := planeBucket(el.RAANDeg, shell)
		planeID = fmt.Sprintf("%s_a%d_p%02d", g.constellation, int(shell.AltitudeKm), bucket)
		return planeID, shell.InclinationDeg, float64(bucket) * shell.PlaneSpacingDeg()
	}

	ib := int(math.Floor(el.InclinationDeg / genericInclinationBinDeg))
	rb := int(math.Floor(el.RAANDeg / genericRAANBinDeg))
	planeID = fmt.Sprintf("%s_i%02d_r%03d", g.constellation, ib*5, rb*30)
	return planeID,
		float64(ib)*genericInclinationBinDeg + genericInclinationBinDeg/2,
		float64(rb)*genericRAANBinDeg + genericRAANBinDeg/2
}

// planeBucket rounds RAAN to the nearest plane-spacing multiple, modulo the
// plane count. Ceil(x - 0.5) rounds an exact half-spacing boundary down, to
// the bucket whose center lies below it.
func planeBucket(raanDeg float64, shell constellation.Shell) int {
	spacing := shell.PlaneSpacingDeg()
	bucket := int(math.Ceil(raanDeg/spacing-0.5)) % shell.PlaneCount
	if bucket < 0 {
		bucket += shell.PlaneCount
	}
	return bucket
}

// SortedIDs returns the plane IDs in lexical order for deterministic
// iteration over a grouping.
func SortedIDs(groups map[string]Group) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
