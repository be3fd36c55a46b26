package propagation

import "time"

// Series propagates over [start, end] at the given step and returns the
// successful states in time order together with the count of failed samples.
// A failure drops that instant only; the rest of the series is unaffected.
func (p *Propagator) Series(start, end time.Time, step time.Duration) ([]StateVector, int) {
	if step <= 0 || end.Before(start) {
		return nil, 0
	}

	n := int(end.Sub(start)/step) + 1
	states := make([]StateVector, 0, n)
	failures := 0

	for t := start; !t.After(end); t = t.Add(step) {
		sv, err := p.At(t)
		if err != nil {
			failures++
			continue
		}
		states = append(states, sv)
	}

	return states, failures
}

// SampleTimes returns the sampling grid for [start, end] at step: start,
// start+step, ... up to and including end when it falls on the grid.
func SampleTimes(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 || end.Before(start) {
		return nil
	}

	times := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		times = append(times, t)
	}
	return times
}
