package visibility

import "time"

// Segment is one contiguous visible run in a series: a rise-set arc as seen
// on the sampling grid.
type Segment struct {
	Start            time.Time
	End              time.Time
	Samples          int
	MaxElevationDeg  float64
	MaxElevationTime time.Time
}

// Duration returns the time between the first and last visible sample of
// the segment. A single-sample segment has zero duration; callers that want
// dwell time weight Samples by the window interval instead.
func (g Segment) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

// Segments extracts the contiguous visible runs from a series, in time
// order. Gap samples (not visible, or dropped by a propagation failure)
// terminate a run.
func Segments(s Series) []Segment {
	var segments []Segment
	var cur *Segment

	for _, sp := range s.Samples {
		if !sp.Visible {
			if cur != nil {
				segments = append(segments, *cur)
				cur = nil
			}
			continue
		}

		if cur == nil {
			cur = &Segment{
				Start:            sp.Time,
				End:              sp.Time,
				Samples:          1,
				MaxElevationDeg:  sp.ElevationDeg,
				MaxElevationTime: sp.Time,
			}
			continue
		}

		cur.End = sp.Time
		cur.Samples++
		if sp.ElevationDeg > cur.MaxElevationDeg {
			cur.MaxElevationDeg = sp.ElevationDeg
			cur.MaxElevationTime = sp.Time
		}
	}

	if cur != nil {
		segments = append(segments, *cur)
	}

	return segments
}

// LongestSegment returns the segment with the most samples, or a zero
// Segment when the series has no visible sample. Ties keep the earliest.
func LongestSegment(s Series) Segment {
	var best Segment
	for _, seg := range Segments(s) {
		if seg.Samples > best.Samples {
			best = seg
		}
	}
	return best
}
