package density

import (
	"math"
)

// MaxGridPoints caps the lattice size so a tiny spacing over a wide extent
// fails fast instead of exhausting memory.
const MaxGridPoints = 4_000_000

// SamplePoint is one grid location and the feature length found around it.
type SamplePoint struct {
	Index   int     `json:"index"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Density float64 `json:"density_km"`
}

// Grid is the ordered lattice of sample points produced for one run.
// Points are addressed by Index, which equals their position in Points.
type Grid struct {
	Frame   Frame         `json:"frame"`
	Spacing float64       `json:"spacing"`
	Points  []SamplePoint `json:"points"`
}

// Len returns the number of sample points.
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Points)
}

// Densities returns a copy of the per-point densities in grid order.
func (g *Grid) Densities() []float64 {
	out := make([]float64, len(g.Points))
	for i := range g.Points {
		out[i] = g.Points[i].Density
	}
	return out
}

// GenerateGrid lays a regular lattice over ext. Each axis steps from its
// minimum by spacing and stops strictly before its maximum; an axis shorter
// than spacing still yields its minimum, so the grid always holds at least
// (MinX, MinY). Points are ordered x-major.
func GenerateGrid(ext Extent, spacing float64, frame Frame) (*Grid, error) {
	if !(spacing > 0) || math.IsInf(spacing, 0) {
		return nil, invalidParam("spacing", spacing)
	}
	if !ext.Valid() || !finite(ext.MinX, ext.MinY, ext.MaxX, ext.MaxY) {
		return nil, invalidParam("extent", math.Min(ext.Width(), ext.Height()))
	}

	if cells := math.Max(1, math.Ceil(ext.Width()/spacing)) * math.Max(1, math.Ceil(ext.Height()/spacing)); cells > MaxGridPoints {
		return nil, invalidParam("spacing", spacing)
	}

	xs := axisSteps(ext.MinX, ext.MaxX, spacing)
	ys := axisSteps(ext.MinY, ext.MaxY, spacing)

	points := make([]SamplePoint, 0, len(xs)*len(ys))
	for _, x := range xs {
		for _, y := range ys {
			points = append(points, SamplePoint{Index: len(points), X: x, Y: y})
		}
	}

	return &Grid{Frame: frame, Spacing: spacing, Points: points}, nil
}

// axisSteps returns min + i*step for i >= 0 while the value stays below max.
// At least one value (min) is always returned.
func axisSteps(lo, hi, step float64) []float64 {
	n := int(math.Ceil((hi - lo) / step))
	if n < 1 {
		return []float64{lo}
	}
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := lo + float64(i)*step
		if v >= hi {
			break
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, lo)
	}
	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
