package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84AKm = 6378.137              // semi-major axis (km)
	wgs84F   = 1.0 / 298.257223563   // flattening
	wgs84E2  = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// epsHorizontalKm guards the look-angle atan2 when a satellite passes through
// the zenith and both horizontal components vanish at once.
const epsHorizontalKm = 1e-9

// Observer is a fixed ground station. Its ECEF position is computed once at
// construction and reused across every satellite and sample time.
type Observer struct {
	LatDeg    float64
	LonDeg    float64
	AltitudeM float64

	latRad, lonRad float64
	ecef           [3]float64 // km
}

// LookAngles holds the observer-relative pointing solution for one satellite
// at one instant.
type LookAngles struct {
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	AzimuthDeg   float64 // 0 = North, clockwise, normalized to [0, 360)
	RangeKm      float64
}

// NewObserver creates an Observer from geodetic coordinates. Latitude and
// longitude are in degrees, altitude in meters above the WGS-84 ellipsoid.
func NewObserver(latDeg, lonDeg, altitudeM float64) Observer {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	altKm := altitudeM / 1000.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	n := wgs84AKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Observer{
		LatDeg:    latDeg,
		LonDeg:    lonDeg,
		AltitudeM: altitudeM,
		latRad:    lat,
		lonRad:    lon,
		ecef: [3]float64{
			(n + altKm) * cosLat * math.Cos(lon),
			(n + altKm) * cosLat * math.Sin(lon),
			(n*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// ECEF returns the observer's precomputed Earth-fixed position in km.
func (o Observer) ECEF() [3]float64 {
	return o.ecef
}

// LookAnglesTo computes elevation, azimuth, and slant range from the observer
// to a satellite position given in ECEF km.
//
// The line-of-sight vector is rotated into the local East-North-Up frame:
// elevation = atan2(up, horizontal magnitude), azimuth = atan2(east, north).
// With a satellite at the zenith both horizontal components are near zero, so
// the horizontal magnitude is clamped to keep the elevation a well-defined
// 90° instead of a NaN.
func (o Observer) LookAnglesTo(satECEF [3]float64) LookAngles {
	dx := satECEF[0] - o.ecef[0]
	dy := satECEF[1] - o.ecef[1]
	dz := satECEF[2] - o.ecef[2]

	sinLat := math.Sin(o.latRad)
	cosLat := math.Cos(o.latRad)
	sinLon := math.Sin(o.lonRad)
	cosLon := math.Cos(o.lonRad)

	east := -sinLon*dx + cosLon*dy
	north := -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz
	up := cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz

	horizontal := math.Sqrt(east*east + north*north)
	if horizontal < epsHorizontalKm {
		horizontal = epsHorizontalKm
	}

	el := math.Atan2(up, horizontal)
	az := math.Atan2(east, north)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		ElevationDeg: el * 180.0 / math.Pi,
		AzimuthDeg:   az * 180.0 / math.Pi,
		RangeKm:      math.Sqrt(dx*dx + dy*dy + dz*dz),
	}
}

// GeodeticPoint holds a geodetic position: latitude/longitude in degrees,
// altitude in km above the ellipsoid.
type GeodeticPoint struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// ECEFToGeodetic converts an ECEF position in km to geodetic coordinates
// using the iterative Bowring method. Converges in 2-3 iterations for Earth
// orbits.
func ECEFToGeodetic(pos [3]float64) GeodeticPoint {
	x, y, z := pos[0], pos[1], pos[2]

	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))

	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := wgs84AKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := wgs84AKm / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}
