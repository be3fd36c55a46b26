// Package transform provides the coordinate frame conversions behind
// observer-relative satellite geometry.
//
// SGP4 propagation yields positions in TEME (True Equator Mean Equinox);
// visibility geometry needs them Earth-fixed. The TEME to ECEF rotation here
// is the GMST-only simplification (TEME → PEF ≈ ECEF) from Vallado Ch. 3,
// ignoring polar motion and the equation of equinoxes. The residual error is
// tens of meters, well inside the tolerance of an elevation-threshold
// visibility decision.
//
// All positions are in km and velocities in km/s throughout.
package transform

import "math"

// Plausible geocentric radius range for an Earth-orbiting satellite.
// LEO sits around 6571-6971 km, GEO at 42164 km.
const (
	minOrbitRadiusKm = 6200.0
	maxOrbitRadiusKm = 50000.0
)

// RotateTEMEToECEF rotates a TEME position/velocity pair into the ECEF frame
// using a precomputed GMST angle in radians.
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
//
// where R3(θ) is a rotation about the Z-axis by angle θ (GMST),
// and ω = [0, 0, ω_earth] is Earth's angular velocity vector.
func RotateTEMEToECEF(pos, vel [3]float64, gmst float64) (ecefPos, ecefVel [3]float64) {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	ecefPos[0] = pos[0]*cosG + pos[1]*sinG
	ecefPos[1] = -pos[0]*sinG + pos[1]*cosG
	ecefPos[2] = pos[2]

	// ω × r_ECEF = [-ω*y, ω*x, 0]
	ecefVel[0] = vel[0]*cosG + vel[1]*sinG + OmegaEarth*ecefPos[1]
	ecefVel[1] = -vel[0]*sinG + vel[1]*cosG - OmegaEarth*ecefPos[0]
	ecefVel[2] = vel[2]

	return ecefPos, ecefVel
}

// ValidateECEF reports whether an ECEF position in km is physically
// reasonable for an Earth-orbiting satellite: all components finite and the
// geocentric radius inside the LEO-to-beyond-GEO band.
func ValidateECEF(pos [3]float64) bool {
	for _, c := range pos {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}

	mag := math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2])
	return mag >= minOrbitRadiusKm && mag <= maxOrbitRadiusKm
}
