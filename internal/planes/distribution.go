package planes

import "gonum.org/v1/gonum/stat"

// Distribution summarizes how satellites spread across plane buckets.
// Reporting only; it never gates selection.
type Distribution struct {
	PlaneCount     int
	MeanPerPlane   float64
	StdDevPerPlane float64
	Uniformity     float64 // 1 - stddev/mean, floored at 0
}

// AnalyzeDistribution computes population statistics of the
// satellites-per-plane counts.
func AnalyzeDistribution(groups map[string]Group) Distribution {
	if len(groups) == 0 {
		return Distribution{}
	}

	counts := make([]float64, 0, len(groups))
	for _, g := range groups {
		counts = append(counts, float64(len(g.Members)))
	}

	mean := stat.Mean(counts, nil)
	sigma := stat.PopStdDev(counts, nil)

	uniformity := 1.0 - sigma/mean
	if uniformity < 0 {
		uniformity = 0
	}

	return Distribution{
		PlaneCount:     len(groups),
		MeanPerPlane:   mean,
		StdDevPerPlane: sigma,
		Uniformity:     uniformity,
	}
}
