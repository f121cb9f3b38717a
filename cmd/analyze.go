package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/density-cli/internal/density"
	"github.com/sells-group/density-cli/internal/report"
	"github.com/sells-group/density-cli/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rank the sites with the most road length nearby",
	Long:  "Loads a road dataset, samples a regular grid over its extent, sums the road length within the radius of each sample point and prints the top sites.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyAnalysisFlags(cmd)
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		sourceFlag, _ := cmd.Flags().GetString("source")
		if sourceFlag == "" {
			sourceFlag = cfg.Source.Path
		}
		src := parseSource(sourceFlag, cfg)

		prepared, err := loadDataset(ctx, src, cfg.Analysis.Surface)
		if err != nil {
			return eris.Wrap(err, "analyze: load dataset")
		}

		params := milesParams(cfg.Analysis.RadiusMiles, cfg.Analysis.SpacingMiles, cfg.Analysis.TopK)
		res, err := density.Analyze(ctx, prepared, params, density.WithWorkers(cfg.Analysis.Workers))
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		rows := report.Rows(res.Grid.Frame, res.Top)
		summary := report.Summarize(res.Grid)
		fmt.Fprintf(os.Stdout, "Top %d sites by road length within %.1f miles (grid every %.1f miles)\n\n",
			len(rows), cfg.Analysis.RadiusMiles, cfg.Analysis.SpacingMiles)
		if err := report.WriteTable(os.Stdout, rows); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout)
		if err := report.WriteSummary(os.Stdout, summary); err != nil {
			return err
		}

		var runID string
		if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
			if err != nil {
				return eris.Wrap(err, "analyze: open store")
			}
			defer st.Close() //nolint:errcheck

			runID, err = st.SaveAnalysis(ctx, analysisRecord(src.Key(), res), storePoints(res))
			if err != nil {
				return eris.Wrap(err, "analyze: save run")
			}
			fmt.Fprintf(os.Stdout, "\nSaved run %s\n", runID)
		}

		doc := report.Document{
			ID:          runID,
			Source:      src.Key(),
			GeneratedAt: time.Now().UTC(),
			Params:      res.Params,
			Extent:      res.Extent,
			Summary:     summary,
			Top:         rows,
		}
		return writeOutputs(cmd, res, doc)
	},
}

// applyAnalysisFlags overrides configured analysis defaults with flags the
// user set explicitly.
func applyAnalysisFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("radius-miles") {
		cfg.Analysis.RadiusMiles, _ = flags.GetFloat64("radius-miles")
	}
	if flags.Changed("spacing-miles") {
		cfg.Analysis.SpacingMiles, _ = flags.GetFloat64("spacing-miles")
	}
	if flags.Changed("top") {
		cfg.Analysis.TopK, _ = flags.GetInt("top")
	}
	if flags.Changed("surface") {
		cfg.Analysis.Surface, _ = flags.GetString("surface")
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers, _ = flags.GetInt("workers")
	}
}

func writeOutputs(cmd *cobra.Command, res *density.Result, doc report.Document) error {
	geojsonPath, _ := cmd.Flags().GetString("geojson")
	htmlPath, _ := cmd.Flags().GetString("html")
	yamlPath, _ := cmd.Flags().GetString("yaml")

	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{geojsonPath, func(w io.Writer) error { return report.WriteGeoJSON(w, res.Grid, res.Top) }},
		{htmlPath, func(w io.Writer) error {
			return report.WriteHTMLMap(w, res.Grid, res.Top, "Road density "+doc.Source)
		}},
		{yamlPath, func(w io.Writer) error { return report.WriteYAML(w, doc) }},
	}
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := writeFile(o.path, o.write); err != nil {
			return err
		}
		zap.L().Info("report written", zap.String("path", o.path))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "write %s", path)
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	analyzeCmd.Flags().String("source", "", "road dataset: .shp, .zip, .geojson or postgis:<table> (default from config)")
	analyzeCmd.Flags().Float64("radius-miles", 10, "search radius around each sample point in miles")
	analyzeCmd.Flags().Float64("spacing-miles", 25, "distance between sample points in miles")
	analyzeCmd.Flags().Int("top", 5, "number of sites to report")
	analyzeCmd.Flags().String("surface", "asphalt", "road surface to keep; empty keeps every road")
	analyzeCmd.Flags().Int("workers", 0, "evaluation goroutines (0 = all CPUs)")
	analyzeCmd.Flags().String("geojson", "", "write every sample point to this GeoJSON file")
	analyzeCmd.Flags().String("html", "", "write an interactive chart to this HTML file")
	analyzeCmd.Flags().String("yaml", "", "write a run summary to this YAML file")
	analyzeCmd.Flags().Bool("no-store", false, "do not record the run in the store")
	rootCmd.AddCommand(analyzeCmd)
}
