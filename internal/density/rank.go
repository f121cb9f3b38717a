package density

import (
	"sort"
)

// TopK returns the k densest sample points, highest first. Equal densities
// keep grid order. k larger than the grid is clamped; grid is not modified.
func TopK(grid *Grid, k int) ([]SamplePoint, error) {
	if k <= 0 {
		return nil, invalidParam("k", float64(k))
	}
	if grid.Len() == 0 {
		return []SamplePoint{}, nil
	}

	ranked := make([]SamplePoint, len(grid.Points))
	copy(ranked, grid.Points)

	// Order is derived from Index rather than slice position so callers that
	// hand in a reordered copy still get grid-order tie breaking.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Density != ranked[j].Density {
			return ranked[i].Density > ranked[j].Density
		}
		return ranked[i].Index < ranked[j].Index
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k:k], nil
}
