package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Selected for: most community adoption, pure Go (no CGO), battle-tested
// since 2016, explicit TEME output, includes ECIToECEF for cross-validation.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not
// visible to the caller. We detect propagation failures by checking output
// for NaN/Inf and unreasonable position magnitudes.

// deepSpaceBoundaryMinutes is the orbital period above which the SGP4
// reference implementation switches to the deep-space (SDP4) equations.
// LEO constellations sit far below it; the branch exists for stray catalog
// entries.
const deepSpaceBoundaryMinutes = 225.0

// Plausible geocentric radius band in km. Positions outside it are treated
// as numerical divergence.
const (
	minRadiusKm = 6200.0
	maxRadiusKm = 50000.0
)

// Propagator wraps the SGP4/SDP4 model for a single satellite.
type Propagator struct {
	sat           satellite.Satellite
	catalogNumber int
	deepSpace     bool
}

// New initializes the orbital model from a TLE record.
//
// Lines are pre-validated because go-satellite calls log.Fatal on malformed
// input (which would kill the process). The library selects near-Earth vs.
// deep-space equations internally from the orbital period; DeepSpace reports
// which side of that boundary the orbit falls on.
func New(rec tle.TLERecord) (*Propagator, error) {
	if err := validateLines(rec.Line1, rec.Line2); err != nil {
		return nil, &Error{CatalogNumber: rec.CatalogNumber, Code: CodeBadElements, Msg: err.Error()}
	}

	sat := satellite.TLEToSat(rec.Line1, rec.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, &Error{CatalogNumber: rec.CatalogNumber, Code: int(sat.Error), Msg: sat.ErrorStr}
	}

	elements, err := tle.ParseElements(rec)
	if err != nil {
		return nil, &Error{CatalogNumber: rec.CatalogNumber, Code: CodeBadElements, Msg: err.Error()}
	}

	return &Propagator{
		sat:           sat,
		catalogNumber: rec.CatalogNumber,
		deepSpace:     elements.PeriodMinutes() >= deepSpaceBoundaryMinutes,
	}, nil
}

// CatalogNumber returns the satellite this propagator models.
func (p *Propagator) CatalogNumber() int {
	return p.catalogNumber
}

// DeepSpace reports whether the orbital period puts this satellite on the
// deep-space side of the SGP4/SDP4 boundary.
func (p *Propagator) DeepSpace() bool {
	return p.deepSpace
}

// At propagates to t and returns the TEME state vector.
func (p *Propagator) At(t time.Time) (StateVector, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if !finite(pos) || !finite(vel) {
		return StateVector{}, &Error{CatalogNumber: p.catalogNumber, Code: CodeNonFinite, Msg: "NaN/Inf in propagated state"}
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < minRadiusKm || mag > maxRadiusKm {
		return StateVector{}, &Error{
			CatalogNumber: p.catalogNumber,
			Code:          CodeImplausible,
			Msg:           fmt.Sprintf("orbit radius %.1f km outside [%.0f, %.0f]", mag, minRadiusKm, maxRadiusKm),
		}
	}

	return StateVector{
		CatalogNumber: p.catalogNumber,
		Time:          t,
		Frame:         FrameTEME,
		Position:      [3]float64{pos.X, pos.Y, pos.Z},
		Velocity:      [3]float64{vel.X, vel.Y, vel.Z},
	}, nil
}

// validateLines performs basic format validation on TLE lines.
// This prevents passing garbage to go-satellite which calls log.Fatal on
// parse errors.
func validateLines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

func finite(v satellite.Vector3) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
