package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/density-cli/internal/config"
	"github.com/sells-group/density-cli/internal/density"
	"github.com/sells-group/density-cli/internal/projection"
	"github.com/sells-group/density-cli/internal/report"
	"github.com/sells-group/density-cli/internal/roads"
	"github.com/sells-group/density-cli/internal/store"
)

const postgisPrefix = "postgis:"

// parseSource turns a --source value into a road source. Values of the form
// postgis:<table> read from the configured PostGIS database.
func parseSource(value string, c *config.Config) roads.Source {
	if table, ok := strings.CutPrefix(value, postgisPrefix); ok {
		return roads.Source{
			Kind:        roads.KindPostGIS,
			Table:       table,
			DatabaseURL: c.PostGISURL(),
		}
	}
	return roads.Source{Path: value}
}

// loadDataset reads roads from src, keeps the requested surface, drops
// duplicate geometries and projects to web mercator ready for evaluation.
func loadDataset(ctx context.Context, src roads.Source, surface string) (*density.Prepared, error) {
	c, err := roads.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	return prepareCollection(c, surface)
}

func prepareCollection(c *roads.Collection, surface string) (*density.Prepared, error) {
	c = roads.Dedupe(roads.FilterSurface(c, surface))

	fs, err := c.ToFeatureSet()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: build features")
	}
	projected, err := projection.ProjectFeatureSet(fs, density.FrameWebMercator)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: project features")
	}

	p, err := density.Prepare(projected)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("dataset prepared",
		zap.Int("features", projected.Len()),
		zap.Float64("total_km", projected.TotalLength()*density.MetersToKilometers),
	)
	return p, nil
}

// milesParams converts mile-based settings to projected metres.
func milesParams(radiusMiles, spacingMiles float64, topK int) density.Params {
	return density.Params{
		Radius:  projection.MilesToMeters(radiusMiles),
		Spacing: projection.MilesToMeters(spacingMiles),
		TopK:    topK,
	}
}

// storePoints flattens a result into rows for the run store.
func storePoints(res *density.Result) []store.Point {
	ranks := report.Ranks(res.Top)
	points := make([]store.Point, 0, res.Grid.Len())
	for _, pt := range res.Grid.Points {
		lon, lat := report.LonLat(res.Grid.Frame, pt.X, pt.Y)
		points = append(points, store.Point{
			Index:     pt.Index,
			X:         pt.X,
			Y:         pt.Y,
			Lon:       lon,
			Lat:       lat,
			DensityKm: pt.Density,
			Rank:      ranks[pt.Index],
		})
	}
	return points
}

// analysisRecord summarises a result for the run store.
func analysisRecord(source string, res *density.Result) *store.Analysis {
	a := &store.Analysis{
		Source:     source,
		RadiusM:    res.Params.Radius,
		SpacingM:   res.Params.Spacing,
		TopK:       res.Params.TopK,
		PointCount: res.Grid.Len(),
		DurationMs: res.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if len(res.Top) > 0 {
		a.MaxDensityKm = res.Top[0].Density
	}
	return a
}
