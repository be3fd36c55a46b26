package coverage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedarwud/ntn-stack-sub027/internal/constellation"
	"github.com/cedarwud/ntn-stack-sub027/internal/visibility"
)

var fixtureStart = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

func sampleAt(i int, elevationDeg, azimuthDeg float64, vis bool) visibility.Sample {
	return visibility.Sample{
		Time:         fixtureStart.Add(time.Duration(i) * 30 * time.Second),
		ElevationDeg: elevationDeg,
		AzimuthDeg:   azimuthDeg,
		Visible:      vis,
	}
}

// seriesForCounts builds memberCount member series whose per-sample visible
// count reproduces counts exactly: member m is visible at sample j iff
// m <= counts[j].
func seriesForCounts(memberCount int, counts []int) ([]int, map[int]visibility.Series) {
	members := make([]int, 0, memberCount)
	set := make(map[int]visibility.Series, memberCount)
	for m := 1; m <= memberCount; m++ {
		s := visibility.Series{CatalogNumber: m}
		for j, c := range counts {
			vis := m <= c
			el := -10.0
			if vis {
				el = 20 + float64(m)
			}
			s.Samples = append(s.Samples, sampleAt(j, el, float64((m*40)%360), vis))
		}
		members = append(members, m)
		set[m] = s
	}
	return members, set
}

func TestValidateBoundsFixture(t *testing.T) {
	counts := []int{11, 11, 12, 10, 13, 11}
	members, set := seriesForCounts(13, counts)

	r := Validate(constellation.Starlink, members, set, Bounds{TargetMin: 10, TargetMax: 15}, 0)

	assert.True(t, r.Compliant)
	assert.Equal(t, 10, r.MinVisible)
	assert.Equal(t, 13, r.MaxVisible)
	assert.Equal(t, counts, r.VisibleCounts)
	assert.InDelta(t, 68.0/6.0, r.MeanVisible, 1e-9)
	assert.Equal(t, 0, r.MarginLow)
	assert.Equal(t, 2, r.MarginHigh)
	assert.Zero(t, r.TotalViolation())
	require.Len(t, r.Times, len(counts))
	assert.Equal(t, fixtureStart, r.Times[0])
}

func TestValidateHandoverFixture(t *testing.T) {
	const (
		satA = 101
		satB = 102
		satC = 103
		satD = 104
	)
	set := map[int]visibility.Series{
		satA: {CatalogNumber: satA, Samples: []visibility.Sample{
			sampleAt(0, 30, 10, true), sampleAt(1, 35, 20, true), sampleAt(2, 40, 30, true),
		}},
		satB: {CatalogNumber: satB, Samples: []visibility.Sample{
			sampleAt(0, 25, 100, true), sampleAt(1, 20, 110, true), sampleAt(2, 15, 120, true),
		}},
		satC: {CatalogNumber: satC, Samples: []visibility.Sample{
			sampleAt(0, 12, 200, true), sampleAt(1, 2, 210, false), sampleAt(2, -4, 220, false),
		}},
		satD: {CatalogNumber: satD, Samples: []visibility.Sample{
			sampleAt(0, 1, 300, false), sampleAt(1, 8, 310, true), sampleAt(2, 14, 320, true),
		}},
	}
	members := []int{satA, satB, satC, satD}

	r := Validate(constellation.Starlink, members, set, Bounds{TargetMin: 3, TargetMax: 3}, 0)

	// {A,B,C} -> {A,B,D} at t1 is the only membership change; t2 repeats t1.
	require.Len(t, r.Handovers, 1)
	ev := r.Handovers[0]
	assert.Equal(t, fixtureStart.Add(30*time.Second), ev.Time)
	assert.Equal(t, []int{satD}, ev.Entering)
	assert.Equal(t, []int{satC}, ev.Leaving)

	assert.Equal(t, []int{3, 3, 3}, r.VisibleCounts)
	assert.True(t, r.Compliant)
}

func TestValidateToleranceRelaxesBounds(t *testing.T) {
	members, set := seriesForCounts(4, []int{2, 3, 4})
	b := Bounds{TargetMin: 3, TargetMax: 3}

	hard := Validate(constellation.OneWeb, members, set, b, 0)
	assert.False(t, hard.Compliant)
	assert.Equal(t, -1, hard.MarginLow)
	assert.Equal(t, -1, hard.MarginHigh)
	assert.Equal(t, 2, hard.TotalViolation())
	assert.Equal(t, []int{0}, hard.DeficitSamples())
	assert.Equal(t, []int{2}, hard.SurplusSamples())

	relaxed := Validate(constellation.OneWeb, members, set, b, 1)
	assert.True(t, relaxed.Compliant)
	assert.Zero(t, relaxed.TotalViolation())
	assert.Empty(t, relaxed.DeficitSamples())
	assert.Empty(t, relaxed.SurplusSamples())
	// Margins always report against the unrelaxed targets.
	assert.Equal(t, -1, relaxed.MarginLow)
	assert.Equal(t, -1, relaxed.MarginHigh)
}

func TestValidateThresholdLadderAndSectors(t *testing.T) {
	set := map[int]visibility.Series{
		1: {CatalogNumber: 1, Samples: []visibility.Sample{
			sampleAt(0, 6, 10, true), sampleAt(1, 12, 100, true), sampleAt(2, 18, 200, true),
		}},
		2: {CatalogNumber: 2, Samples: []visibility.Sample{
			sampleAt(0, 4, 0, false), sampleAt(1, 4, 0, false), sampleAt(2, 16, 350, true),
		}},
	}

	r := Validate(constellation.Starlink, []int{1, 2}, set, Bounds{TargetMin: 1, TargetMax: 2}, 0)

	require.Len(t, r.ThresholdShares, 3)
	assert.Equal(t, 5.0, r.ThresholdShares[0].ThresholdDeg)
	assert.InDelta(t, 1.0, r.ThresholdShares[0].Share, 1e-9)
	assert.InDelta(t, 2.0/3.0, r.ThresholdShares[1].Share, 1e-9)
	assert.InDelta(t, 1.0/3.0, r.ThresholdShares[2].Share, 1e-9)

	// Visible samples landed in sectors 0, 2, 4 and 7.
	assert.Equal(t, 4, r.SectorsCovered)
}

func TestValidateUnsortedMembersMissingSeries(t *testing.T) {
	set := map[int]visibility.Series{
		101: {CatalogNumber: 101, Samples: []visibility.Sample{
			sampleAt(0, 30, 10, true), sampleAt(1, 30, 10, true),
		}},
		104: {CatalogNumber: 104, Samples: []visibility.Sample{
			sampleAt(0, 1, 0, false), sampleAt(1, 12, 90, true),
		}},
	}

	// 999 has no series and never counts.
	r := Validate(constellation.Other, []int{999, 104, 101}, set, Bounds{TargetMin: 1, TargetMax: 2}, 0)

	assert.Equal(t, []int{1, 2}, r.VisibleCounts)
	require.Len(t, r.Handovers, 1)
	assert.Equal(t, []int{104}, r.Handovers[0].Entering)
	assert.Empty(t, r.Handovers[0].Leaving)
}

func TestValidateEmptyPool(t *testing.T) {
	r := Validate(constellation.Starlink, nil, nil, Bounds{TargetMin: 10, TargetMax: 15}, 0)
	assert.False(t, r.Compliant)
	assert.Empty(t, r.Times)
	assert.Zero(t, r.MinVisible)
	assert.Zero(t, r.MaxVisible)

	trivial := Validate(constellation.Starlink, nil, nil, Bounds{TargetMin: 0, TargetMax: 5}, 0)
	assert.True(t, trivial.Compliant)
}

func TestSetDiff(t *testing.T) {
	entering, leaving := setDiff([]int{1, 2, 3}, []int{1, 2, 4})
	assert.Equal(t, []int{4}, entering)
	assert.Equal(t, []int{3}, leaving)

	entering, leaving = setDiff(nil, []int{7})
	assert.Equal(t, []int{7}, entering)
	assert.Empty(t, leaving)

	entering, leaving = setDiff([]int{5, 6}, []int{5, 6})
	assert.Empty(t, entering)
	assert.Empty(t, leaving)
}
