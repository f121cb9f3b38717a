package report

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/density-cli/internal/density"
)

// Summary describes the distribution of densities across a grid.
type Summary struct {
	Points  int     `json:"points" yaml:"points"`
	NonZero int     `json:"non_zero" yaml:"non_zero"`
	Mean    float64 `json:"mean_km" yaml:"mean_km"`
	StdDev  float64 `json:"stddev_km" yaml:"stddev_km"`
	Median  float64 `json:"median_km" yaml:"median_km"`
	P90     float64 `json:"p90_km" yaml:"p90_km"`
	Min     float64 `json:"min_km" yaml:"min_km"`
	Max     float64 `json:"max_km" yaml:"max_km"`
}

// Summarize computes distribution statistics for grid densities. An empty
// grid yields a zero Summary.
func Summarize(grid *density.Grid) Summary {
	if grid.Len() == 0 {
		return Summary{}
	}

	vals := grid.Densities()
	sort.Float64s(vals)

	s := Summary{
		Points: len(vals),
		Mean:   stat.Mean(vals, nil),
		Median: stat.Quantile(0.5, stat.Empirical, vals, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, vals, nil),
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
	}
	if len(vals) > 1 {
		s.StdDev = stat.StdDev(vals, nil)
	}
	for _, v := range vals {
		if v > 0 {
			s.NonZero++
		}
	}
	return s
}
