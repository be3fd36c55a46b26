package selection

import (
	"fmt"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
)

// InsufficientCandidatesError reports a constellation with fewer
// visibility-qualifying candidates than its selection target. Selection for
// that constellation cannot proceed; other constellations are unaffected.
type InsufficientCandidatesError struct {
	Constellation constellation.ID
	Candidates    int
	TargetCount   int
}

func (e *InsufficientCandidatesError) Error() string {
	return fmt.Sprintf("constellation %s: %d visibility-qualifying candidates for a target of %d",
		e.Constellation, e.Candidates, e.TargetCount)
}
