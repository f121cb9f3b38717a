// Package report renders density results as text tables, GeoJSON, YAML and
// interactive HTML charts.
package report

import (
	"github.com/sells-group/density-cli/internal/density"
	"github.com/sells-group/density-cli/internal/projection"
)

// Row is a ranked sample point with geographic coordinates attached.
type Row struct {
	Rank      int     `json:"rank" yaml:"rank"`
	Index     int     `json:"index" yaml:"index"`
	X         float64 `json:"x" yaml:"x"`
	Y         float64 `json:"y" yaml:"y"`
	Lon       float64 `json:"lon" yaml:"lon"`
	Lat       float64 `json:"lat" yaml:"lat"`
	DensityKm float64 `json:"density_km" yaml:"density_km"`
	DensityMi float64 `json:"density_mi" yaml:"density_mi"`
}

// LonLat returns the geographic position of a point carried in frame.
func LonLat(frame density.Frame, x, y float64) (lon, lat float64) {
	if frame == density.FrameWebMercator {
		return projection.ToLonLat(x, y)
	}
	return x, y
}

// Rows converts ranked points to rows, numbering ranks from 1.
func Rows(frame density.Frame, top []density.SamplePoint) []Row {
	rows := make([]Row, len(top))
	for i, pt := range top {
		lon, lat := LonLat(frame, pt.X, pt.Y)
		rows[i] = Row{
			Rank:      i + 1,
			Index:     pt.Index,
			X:         pt.X,
			Y:         pt.Y,
			Lon:       lon,
			Lat:       lat,
			DensityKm: pt.Density,
			DensityMi: projection.KilometersToMiles(pt.Density),
		}
	}
	return rows
}

// Ranks maps grid index to 1-based rank for the given top points.
func Ranks(top []density.SamplePoint) map[int]int {
	m := make(map[int]int, len(top))
	for i, pt := range top {
		m[pt.Index] = i + 1
	}
	return m
}
