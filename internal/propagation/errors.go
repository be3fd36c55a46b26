package propagation

import "fmt"

// Error codes. Positive codes come from the SGP4 model itself (1-6 per the
// reference implementation, reported at init). Negative codes cover failures
// the library hides behind its by-value Propagate API, which we detect from
// the output instead.
const (
	CodeNonFinite   = -1 // NaN or Inf in the propagated state
	CodeImplausible = -2 // orbit radius outside the plausible band
	CodeBadElements = -3 // TLE lines rejected before model init
)

// Error is a typed propagation failure for one satellite. A per-sample
// Error excludes that satellite from that sample only, never from the run.
type Error struct {
	CatalogNumber int
	Code          int
	Msg           string
}

func (e *Error) Error() string {
	return fmt.Sprintf("propagation failed for catalog %d (code %d): %s", e.CatalogNumber, e.Code, e.Msg)
}
