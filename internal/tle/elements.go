package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Standard gravitational parameter of Earth (km³/s²) and mean Earth radius
// (km), used to derive the mean altitude from mean motion.
const (
	earthGM       = 398600.4418
	earthRadiusKm = 6371.0
)

// OrbitalElements are the six classical elements carried on TLE line 2.
// Immutable once derived; a record with a newer epoch yields new elements.
type OrbitalElements struct {
	InclinationDeg      float64
	RAANDeg             float64
	Eccentricity        float64
	ArgPerigeeDeg       float64
	MeanAnomalyDeg      float64
	MeanMotionRevPerDay float64
}

// AltitudeKm derives the mean orbital altitude from the mean motion via
// Kepler's third law: a = (GM/n²)^(1/3).
func (e OrbitalElements) AltitudeKm() float64 {
	if e.MeanMotionRevPerDay <= 0 {
		return 0
	}
	n := e.MeanMotionRevPerDay * 2 * math.Pi / 86400.0 // rad/s
	a := math.Cbrt(earthGM / (n * n))
	return a - earthRadiusKm
}

// PeriodMinutes returns the orbital period implied by the mean motion.
func (e OrbitalElements) PeriodMinutes() float64 {
	if e.MeanMotionRevPerDay <= 0 {
		return 0
	}
	return 1440.0 / e.MeanMotionRevPerDay
}

// ParseElements extracts the orbital elements from a record's line 2.
// Column positions follow the fixed TLE format; the eccentricity field
// carries an implied leading decimal point.
func ParseElements(rec TLERecord) (OrbitalElements, error) {
	return parseLine2Elements(rec.Line2)
}

func parseLine2Elements(line2 string) (OrbitalElements, error) {
	if len(line2) < 63 {
		return OrbitalElements{}, fmt.Errorf("line2 too short for element fields: %d chars", len(line2))
	}

	fields := []struct {
		name    string
		lo, hi  int
		implied bool // implied leading decimal point
	}{
		{"inclination", 8, 16, false},
		{"raan", 17, 25, false},
		{"eccentricity", 26, 33, true},
		{"argument of perigee", 34, 42, false},
		{"mean anomaly", 43, 51, false},
		{"mean motion", 52, 63, false},
	}

	vals := make([]float64, len(fields))
	for i, f := range fields {
		raw := strings.TrimSpace(line2[f.lo:f.hi])
		if f.implied {
			raw = "0." + raw
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return OrbitalElements{}, fmt.Errorf("parsing %s %q: %w", f.name, raw, err)
		}
		vals[i] = v
	}

	return OrbitalElements{
		InclinationDeg:      vals[0],
		RAANDeg:             vals[1],
		Eccentricity:        vals[2],
		ArgPerigeeDeg:       vals[3],
		MeanAnomalyDeg:      vals[4],
		MeanMotionRevPerDay: vals[5],
	}, nil
}
