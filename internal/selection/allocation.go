package selection

import (
	"sort"

	"github.com/cedarwud/ntn-stack-sub027/internal/planes"
)

// Allocate distributes target slots across planes proportional to plane
// size. Each plane's base share is ⌊target × nᵢ / N⌋, capped by its
// population; the remainder goes one slot at a time to the largest planes
// first, ties broken by the lexically smaller plane ID. When the planes
// hold at least target members the result sums exactly to target.
func Allocate(groups map[string]planes.Group, target int) map[string]int {
	alloc := make(map[string]int, len(groups))
	if target <= 0 || len(groups) == 0 {
		return alloc
	}

	ids := planes.SortedIDs(groups)
	total := 0
	for _, id := range ids {
		total += len(groups[id].Members)
	}
	if total == 0 {
		return alloc
	}

	assigned := 0
	for _, id := range ids {
		n := len(groups[id].Members)
		a := target * n / total
		if a > n {
			a = n
		}
		alloc[id] = a
		assigned += a
	}

	order := append([]string(nil), ids...)
	sort.Slice(order, func(i, j int) bool {
		ni, nj := len(groups[order[i]].Members), len(groups[order[j]].Members)
		if ni != nj {
			return ni > nj
		}
		return order[i] < order[j]
	})

	for assigned < target {
		progressed := false
		for _, id := range order {
			if assigned == target {
				break
			}
			if alloc[id] < len(groups[id].Members) {
				alloc[id]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break // every plane saturated: target exceeds the population
		}
	}
	return alloc
}
