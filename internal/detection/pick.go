package detection

import (
	"sort"

	"github.com/samber/lo"
)

// dummySize is the side length of the synthetic region PickLargest pads with.
const dummySize = 0.01

// PickLargest returns the n largest regions of class c, largest first.
//
// Areas are derived on the returned copies; the input slice is not modified.
// Regions with equal area keep their input order. When fewer than n regions
// of the class exist, the result is padded with a 0.01 x 0.01 dummy region
// at the origin, so callers always receive exactly n entries. n <= 0 yields
// an empty slice.
func PickLargest(c Class, n int, regions []Region) []Region {
	if n <= 0 {
		return []Region{}
	}

	picked := lo.FilterMap(regions, func(r Region, _ int) (Region, bool) {
		return r.WithArea(), r.Class == c
	})

	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].Area > picked[j].Area
	})

	if len(picked) > n {
		picked = picked[:n]
	}
	for len(picked) < n {
		picked = append(picked, placeholder(c, dummySize).WithArea())
	}
	return picked
}
