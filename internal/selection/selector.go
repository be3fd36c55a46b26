// Package selection chooses per-constellation satellite pools that hold the
// simultaneous-visibility bounds while maximizing score and orbital
// diversity under a fixed pool-size budget.
//
// Selection is greedy with plane-aware allocation: slots are spread across
// orbital planes proportional to plane population, the best-scored
// candidates fill each plane's share, and a bounded swap loop repairs
// coverage-bound violations. Every tie on every path breaks
// deterministically, so identical inputs always yield the identical pool.
package selection

import (
	"context"
	"log/slog"
	"sort"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/coverage"
	"github.com/cedarwud/ntn-stack-sub027/internal/planes"
	"github.com/cedarwud/ntn-stack-sub027/internal/scoring"
	"github.com/cedarwud/ntn-stack-sub027/internal/tle"
	"github.com/cedarwud/ntn-stack-sub027/internal/visibility"
)

// DefaultMaxSwaps bounds the repair loop when a fresh selection misses the
// coverage bounds.
const DefaultMaxSwaps = 10

// diversityValuePoints puts a satellite's 0-1 diversity contribution on the
// same 0-100 scale as its score when ranking swap-out victims.
const diversityValuePoints = 100.0

// Candidate is one selectable satellite with its scored visibility series.
type Candidate struct {
	CatalogNumber int
	Elements      tle.OrbitalElements
	Series        visibility.Series
	Score         scoring.Score
}

// Input is one constellation's selection problem.
type Input struct {
	Constellation constellation.ID
	TargetCount   int
	Bounds        coverage.Bounds
	Tolerance     int
	Candidates    []Candidate
}

// Diversity summarizes the orbital spread of a selected pool.
type Diversity struct {
	SetDiversity         float64 `json:"set_diversity"`
	RAANDispersion       float64 `json:"raan_dispersion"`
	InclinationSpreadDeg float64 `json:"inclination_spread_deg"`
	PlaneCount           int     `json:"plane_count"`
}

// Quality summarizes the score totals of a selected pool.
type Quality struct {
	MeanScore float64 `json:"mean_score"`
	MinScore  float64 `json:"min_score"`
	MaxScore  float64 `json:"max_score"`
}

// Pool is the selection result for one constellation. Selected is ordered
// by selection priority (score, then catalog number) and Scores matches
// that order, with each satellite's diversity contribution filled in. A
// pool that exhausted the repair budget without meeting the bounds is the
// best pool found, flagged MeetsTarget=false, never a silent success.
type Pool struct {
	Constellation constellation.ID `json:"constellation"`
	TargetCount   int              `json:"target_count"`
	Selected      []int            `json:"selected"`
	Scores        []scoring.Score  `json:"scores"`
	VisibleCounts []int            `json:"visible_counts"`
	Diversity     Diversity        `json:"diversity"`
	Quality       Quality          `json:"quality"`
	MeetsTarget   bool             `json:"meets_target"`
	SwapsUsed     int              `json:"swaps_used"`
}

// Selector implements greedy plane-aware selection with bounded swap
// repair.
type Selector struct {
	catalog  *constellation.Catalog
	maxSwaps int
	logger   *slog.Logger
}

// NewSelector builds a selector. maxSwaps <= 0 selects DefaultMaxSwaps; a
// nil catalog falls back to the built-in shell table.
func NewSelector(catalog *constellation.Catalog, maxSwaps int, logger *slog.Logger) *Selector {
	if catalog == nil {
		catalog = constellation.DefaultCatalog()
	}
	if maxSwaps <= 0 {
		maxSwaps = DefaultMaxSwaps
	}
	return &Selector{catalog: catalog, maxSwaps: maxSwaps, logger: logger}
}

// Select picks a pool for one constellation. Candidates with no visible
// sample are dropped up front; if fewer than TargetCount remain the
// constellation fails with InsufficientCandidatesError and other
// constellations are unaffected.
func (s *Selector) Select(ctx context.Context, in Input) (Pool, error) {
	st := newRunState(in, s.catalog)

	if len(st.qualified) < in.TargetCount {
		return Pool{}, &InsufficientCandidatesError{
			Constellation: in.Constellation,
			Candidates:    len(st.qualified),
			TargetCount:   in.TargetCount,
		}
	}

	st.selectInitial(Allocate(st.groups, in.TargetCount))
	report := st.validate()

	best := st.snapshot(report)
	swaps := 0
	for !report.Compliant && swaps < s.maxSwaps {
		if ctx.Err() != nil {
			break
		}
		inSat, outSat, ok := st.planSwap(report)
		if !ok {
			s.logger.Debug("no productive swap available",
				"constellation", in.Constellation, "swaps_used", swaps)
			break
		}

		delete(st.selected, outSat)
		st.selected[inSat] = true
		swaps++
		report = st.validate()
		s.logger.Debug("swap applied",
			"constellation", in.Constellation,
			"in", inSat, "out", outSat,
			"violation", report.TotalViolation())

		if cand := st.snapshot(report); betterPool(cand, best) {
			best = cand
		}
	}

	pool := st.buildPool(best, swaps)
	s.logger.Info("selection complete",
		"constellation", in.Constellation,
		"selected", len(pool.Selected),
		"meets_target", pool.MeetsTarget,
		"swaps_used", pool.SwapsUsed,
		"mean_score", pool.Quality.MeanScore)
	return pool, ctx.Err()
}

// runState is the mutable working set for one Select call.
type runState struct {
	in        Input
	cands     map[int]Candidate
	series    map[int]visibility.Series
	qualified []int // catalog numbers with >= 1 visible sample, ascending
	groups    map[string]planes.Group
	planeOf   map[int]string
	selected  map[int]bool
}

// poolState is a candidate result captured during the repair loop.
type poolState struct {
	selected  map[int]bool
	report    coverage.Report
	meanScore float64
}

func newRunState(in Input, catalog *constellation.Catalog) *runState {
	st := &runState{
		in:       in,
		cands:    make(map[int]Candidate, len(in.Candidates)),
		series:   make(map[int]visibility.Series, len(in.Candidates)),
		planeOf:  make(map[int]string),
		selected: make(map[int]bool, in.TargetCount),
	}

	var sats []planes.Satellite
	for _, c := range in.Candidates {
		st.cands[c.CatalogNumber] = c
		if c.Series.VisibleCount() == 0 {
			continue
		}
		st.qualified = append(st.qualified, c.CatalogNumber)
		st.series[c.CatalogNumber] = c.Series
		sats = append(sats, planes.Satellite{CatalogNumber: c.CatalogNumber, Elements: c.Elements})
	}
	sort.Ints(st.qualified)

	st.groups = planes.NewGrouper(in.Constellation, catalog).Group(sats)
	for id, grp := range st.groups {
		for _, m := range grp.Members {
			st.planeOf[m] = id
		}
	}
	return st
}

// selectInitial fills each plane's allocation with its best-scored members.
func (st *runState) selectInitial(alloc map[string]int) {
	for _, pid := range planes.SortedIDs(st.groups) {
		members := st.rankByScore(st.groups[pid].Members)
		take := alloc[pid]
		if take > len(members) {
			take = len(members)
		}
		for _, c := range members[:take] {
			st.selected[c] = true
		}
	}
}

func (st *runState) validate() coverage.Report {
	return coverage.Validate(st.in.Constellation, st.selectedList(), st.series, st.in.Bounds, st.in.Tolerance)
}

func (st *runState) snapshot(report coverage.Report) poolState {
	sel := make(map[int]bool, len(st.selected))
	for c := range st.selected {
		sel[c] = true
	}
	return poolState{selected: sel, report: report, meanScore: st.meanScore()}
}

// betterPool prefers the smaller bound violation, then the higher mean
// score.
func betterPool(a, b poolState) bool {
	va, vb := a.report.TotalViolation(), b.report.TotalViolation()
	if va != vb {
		return va < vb
	}
	return a.meanScore > b.meanScore
}

// planSwap picks the next swap per the repair policy: the bound with the
// larger total violation is repaired first (deficit on a tie), falling back
// to the other bound when the preferred side has no productive swap.
func (st *runState) planSwap(report coverage.Report) (inSat, outSat int, ok bool) {
	deficit := report.DeficitSamples()
	surplus := report.SurplusSamples()
	defMag := violationMagnitude(report, deficit)
	surMag := violationMagnitude(report, surplus)

	if defMag >= surMag {
		if inSat, outSat, ok = st.deficitSwap(deficit); ok {
			return inSat, outSat, true
		}
		return st.surplusSwap(surplus)
	}
	if inSat, outSat, ok = st.surplusSwap(surplus); ok {
		return inSat, outSat, true
	}
	return st.deficitSwap(deficit)
}

func violationMagnitude(report coverage.Report, samples []int) int {
	effMin := report.Bounds.TargetMin - report.Tolerance
	effMax := report.Bounds.TargetMax + report.Tolerance
	total := 0
	for _, i := range samples {
		c := report.VisibleCounts[i]
		if c < effMin {
			total += effMin - c
		}
		if c > effMax {
			total += c - effMax
		}
	}
	return total
}

// deficitSwap brings in the best unselected candidate from the plane whose
// unselected members cover the most deficit samples, and drops the selected
// satellite visible at the fewest deficit samples, lowest marginal value
// first.
func (st *runState) deficitSwap(deficit []int) (inSat, outSat int, ok bool) {
	if len(deficit) == 0 {
		return 0, 0, false
	}

	bestPlane := ""
	bestCover := 0
	for _, pid := range planes.SortedIDs(st.groups) {
		cover := 0
		for _, m := range st.groups[pid].Members {
			if !st.selected[m] {
				cover += st.visibleAt(m, deficit)
			}
		}
		if cover > bestCover {
			bestCover = cover
			bestPlane = pid
		}
	}
	if bestPlane == "" {
		return 0, 0, false // no unselected candidate helps any deficit sample
	}

	inSat = -1
	for _, m := range st.rankByScore(st.groups[bestPlane].Members) {
		if !st.selected[m] {
			inSat = m
			break
		}
	}
	if inSat < 0 {
		return 0, 0, false
	}

	outSat = -1
	fewest := 0
	lowestValue := 0.0
	for _, m := range st.selectedList() {
		visible := st.visibleAt(m, deficit)
		value := st.marginalValue(m)
		if outSat < 0 || visible < fewest || (visible == fewest && value < lowestValue) {
			outSat = m
			fewest = visible
			lowestValue = value
		}
	}
	if outSat < 0 {
		return 0, 0, false
	}
	return inSat, outSat, true
}

// surplusSwap drops the lowest-value selected satellite from the plane
// contributing most visibility at surplus samples and brings in the best
// unselected candidate with the least surplus visibility.
func (st *runState) surplusSwap(surplus []int) (inSat, outSat int, ok bool) {
	if len(surplus) == 0 {
		return 0, 0, false
	}

	bestPlane := ""
	bestContrib := 0
	for _, pid := range planes.SortedIDs(st.groups) {
		contrib := 0
		for _, m := range st.groups[pid].Members {
			if st.selected[m] {
				contrib += st.visibleAt(m, surplus)
			}
		}
		if contrib > bestContrib {
			bestContrib = contrib
			bestPlane = pid
		}
	}
	if bestPlane == "" {
		return 0, 0, false
	}

	outSat = -1
	lowestValue := 0.0
	for _, m := range st.rankByScore(st.groups[bestPlane].Members) {
		if !st.selected[m] {
			continue
		}
		if v := st.marginalValue(m); outSat < 0 || v < lowestValue {
			outSat = m
			lowestValue = v
		}
	}
	if outSat < 0 {
		return 0, 0, false
	}

	inSat = -1
	fewest := 0
	bestScore := 0.0
	for _, m := range st.qualified {
		if st.selected[m] {
			continue
		}
		visible := st.visibleAt(m, surplus)
		score := st.cands[m].Score.Total
		if inSat < 0 || visible < fewest || (visible == fewest && score > bestScore) {
			inSat = m
			fewest = visible
			bestScore = score
		}
	}
	if inSat < 0 {
		return 0, 0, false
	}
	return inSat, outSat, true
}

// visibleAt counts the sample indices at which the satellite is visible.
func (st *runState) visibleAt(catalogNumber int, samples []int) int {
	s, ok := st.series[catalogNumber]
	if !ok {
		return 0
	}
	n := 0
	for _, i := range samples {
		if i < len(s.Samples) && s.Samples[i].Visible {
			n++
		}
	}
	return n
}

// marginalValue is the satellite's score plus its diversity contribution to
// the rest of the current selection, on a common scale.
func (st *runState) marginalValue(catalogNumber int) float64 {
	rest := make([]tle.OrbitalElements, 0, len(st.selected))
	for c := range st.selected {
		if c != catalogNumber {
			rest = append(rest, st.cands[c].Elements)
		}
	}
	marginal := scoring.MarginalDiversity(rest, st.cands[catalogNumber].Elements)
	return st.cands[catalogNumber].Score.Total + diversityValuePoints*marginal
}

// rankByScore orders catalog numbers by score total descending, catalog
// number ascending on ties.
func (st *runState) rankByScore(members []int) []int {
	ranked := append([]int(nil), members...)
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := st.cands[ranked[i]].Score.Total, st.cands[ranked[j]].Score.Total
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

func (st *runState) selectedList() []int {
	out := make([]int, 0, len(st.selected))
	for c := range st.selected {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func (st *runState) meanScore() float64 {
	if len(st.selected) == 0 {
		return 0
	}
	sum := 0.0
	for c := range st.selected {
		sum += st.cands[c].Score.Total
	}
	return sum / float64(len(st.selected))
}

// buildPool assembles the final Pool from the best state seen.
func (st *runState) buildPool(best poolState, swaps int) Pool {
	st.selected = best.selected
	priority := st.rankByScore(st.selectedList())

	elems := make([]tle.OrbitalElements, len(priority))
	for i, c := range priority {
		elems[i] = st.cands[c].Elements
	}

	scores := make([]scoring.Score, len(priority))
	q := Quality{}
	planeSet := make(map[string]bool)
	for i, c := range priority {
		sc := st.cands[c].Score
		rest := make([]tle.OrbitalElements, 0, len(priority)-1)
		for j, other := range priority {
			if j != i {
				rest = append(rest, st.cands[other].Elements)
			}
		}
		sc.DiversityContribution = scoring.MarginalDiversity(rest, st.cands[c].Elements)
		scores[i] = sc

		q.MeanScore += sc.Total
		if i == 0 || sc.Total < q.MinScore {
			q.MinScore = sc.Total
		}
		if sc.Total > q.MaxScore {
			q.MaxScore = sc.Total
		}
		planeSet[st.planeOf[c]] = true
	}
	if len(priority) > 0 {
		q.MeanScore /= float64(len(priority))
	}

	disp, spreadDeg := scoring.DiversityComponents(elems)
	return Pool{
		Constellation: st.in.Constellation,
		TargetCount:   st.in.TargetCount,
		Selected:      priority,
		Scores:        scores,
		VisibleCounts: best.report.VisibleCounts,
		Diversity: Diversity{
			SetDiversity:         scoring.SetDiversity(elems),
			RAANDispersion:       disp,
			InclinationSpreadDeg: spreadDeg,
			PlaneCount:           len(planeSet),
		},
		Quality:     q,
		MeetsTarget: best.report.Compliant,
		SwapsUsed:   swaps,
	}
}
