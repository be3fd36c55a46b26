package propagation

import "time"

// Frame identifies the reference frame a state vector is expressed in.
// SGP4 output is TEME; Earth-fixed geometry wants ECEF. The tag travels with
// the vector so the two frames are never mixed implicitly.
type Frame uint8

const (
	FrameTEME Frame = iota
	FrameECEF
)

func (f Frame) String() string {
	switch f {
	case FrameTEME:
		return "TEME"
	case FrameECEF:
		return "ECEF"
	}
	return "unknown"
}

// StateVector holds a single satellite's position and velocity at one
// instant. Position is in km, velocity in km/s.
type StateVector struct {
	CatalogNumber int
	Time          time.Time
	Frame         Frame
	Position      [3]float64
	Velocity      [3]float64
}
