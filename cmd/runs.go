package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/density-cli/internal/projection"
	"github.com/sells-group/density-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored density runs",
	Long:  "Commands for listing stored analyses and showing their top sites.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListAnalyses(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its top sites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			if store.IsNotFound(err) {
				return eris.Errorf("runs show: no run with id %s", args[0])
			}
			return eris.Wrap(err, "runs show")
		}

		top, _ := cmd.Flags().GetInt("top")
		if top <= 0 {
			top = run.TopK
		}
		points, err := st.TopPoints(ctx, run.ID, top)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*store.Analysis
				Top []store.Point `json:"top"`
			}{run, points})
		}

		formatRun(os.Stdout, run, points)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")

	runsShowCmd.Flags().Int("top", 0, "number of sites to show (default: the run's top-K)")
	runsShowCmd.Flags().Bool("json", false, "print the run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tRADIUS_MI\tSPACING_MI\tPOINTS\tMAX_KM\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t----------\t------\t------\t-------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 40 {
			source = "..." + source[len(source)-37:]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%d\t%.2f\t%s\n",
			truncateID(r.ID),
			source,
			projection.MetersToMiles(r.RadiusM),
			projection.MetersToMiles(r.SpacingM),
			r.PointCount,
			r.MaxDensityKm,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRun writes a run header followed by its ranked points.
func formatRun(out io.Writer, run *store.Analysis, points []store.Point) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", run.Source)
	_, _ = fmt.Fprintf(w, "Radius:\t%.1f mi\n", projection.MetersToMiles(run.RadiusM))
	_, _ = fmt.Fprintf(w, "Spacing:\t%.1f mi\n", projection.MetersToMiles(run.SpacingM))
	_, _ = fmt.Fprintf(w, "Points:\t%d\n", run.PointCount)
	_, _ = fmt.Fprintf(w, "Duration:\t%dms\n", run.DurationMs)
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	_ = w.Flush()

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tLON\tLAT\tROAD_KM")
	for i, p := range points {
		_, _ = fmt.Fprintf(w, "%d\t%.5f\t%.5f\t%.2f\n", i+1, p.Lon, p.Lat, p.DensityKm)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
