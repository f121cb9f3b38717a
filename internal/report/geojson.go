package report

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/density-cli/internal/density"
)

// WriteGeoJSON writes every grid point as a lon/lat Point feature with
// density_km and rank properties. Unranked points carry rank 0.
func WriteGeoJSON(w io.Writer, grid *density.Grid, top []density.SamplePoint) error {
	ranks := Ranks(top)
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, grid.Len())}
	for _, pt := range grid.Points {
		lon, lat := LonLat(grid.Frame, pt.X, pt.Y)
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.Itoa(pt.Index),
			Geometry: geom.NewPointFlat(geom.XY, []float64{lon, lat}),
			Properties: map[string]interface{}{
				"density_km": pt.Density,
				"rank":       ranks[pt.Index],
			},
		})
	}

	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return eris.Wrap(err, "report: encode geojson")
	}
	return nil
}
