package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/sells-group/density-cli/internal/density"
)

var densityPalette = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteHTMLMap renders the grid as a lon/lat scatter chart coloured by
// density, with the top points drawn as a second, larger series.
func WriteHTMLMap(w io.Writer, grid *density.Grid, top []density.SamplePoint, title string) error {
	maxDensity := 0.0
	all := make([]opts.ScatterData, 0, grid.Len())
	for _, pt := range grid.Points {
		lon, lat := LonLat(grid.Frame, pt.X, pt.Y)
		all = append(all, opts.ScatterData{Value: []interface{}{lon, lat, pt.Density}})
		maxDensity = max(maxDensity, pt.Density)
	}

	best := make([]opts.ScatterData, 0, len(top))
	for i, pt := range top {
		lon, lat := LonLat(grid.Frame, pt.X, pt.Y)
		best = append(best, opts.ScatterData{
			Name:   fmt.Sprintf("#%d", i+1),
			Value:  []interface{}{lon, lat, pt.Density},
			Symbol: "diamond",
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("points=%d top=%d", grid.Len(), len(top))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 40, Scale: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxDensity),
			Dimension:  "2",
			Text:       []string{"km of road", ""},
			InRange:    &opts.VisualMapInRange{Color: densityPalette},
		}),
	)
	scatter.AddSeries("grid", all, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("top sites", best, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 22}))

	if err := scatter.Render(w); err != nil {
		return eris.Wrap(err, "report: render html map")
	}
	return nil
}
