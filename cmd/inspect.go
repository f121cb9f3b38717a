package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/density-cli/internal/roads"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize a road dataset",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sourceFlag, _ := cmd.Flags().GetString("source")
		if sourceFlag == "" {
			sourceFlag = cfg.Source.Path
		}
		head, _ := cmd.Flags().GetInt("head")

		c, err := roads.Open(cmd.Context(), parseSource(sourceFlag, cfg))
		if err != nil {
			return eris.Wrap(err, "inspect")
		}

		formatInspect(os.Stdout, sourceFlag, c, head)
		return nil
	},
}

// formatInspect writes the road count, a per-surface breakdown and the first
// head roads to w.
func formatInspect(out io.Writer, name string, c *roads.Collection, head int) {
	fmt.Fprintf(out, "%s: %d roads (%s)\n\n", name, c.Len(), c.Frame)

	bySurface := make(map[string]int)
	for _, r := range c.Roads {
		s := r.Surface
		if s == "" {
			s = "(none)"
		}
		bySurface[s]++
	}
	surfaces := make([]string, 0, len(bySurface))
	for s := range bySurface {
		surfaces = append(surfaces, s)
	}
	sort.Slice(surfaces, func(i, j int) bool {
		if bySurface[surfaces[i]] != bySurface[surfaces[j]] {
			return bySurface[surfaces[i]] > bySurface[surfaces[j]]
		}
		return surfaces[i] < surfaces[j]
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SURFACE\tROADS")
	for _, s := range surfaces {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s, bySurface[s])
	}
	_ = w.Flush()

	if head <= 0 || c.Len() == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSURFACE\tLANES\tSOURCE\tVERTICES")
	for _, r := range c.Roads[:min(head, c.Len())] {
		vertices := 0
		if r.Geom != nil {
			vertices = len(r.Geom.FlatCoords()) / r.Geom.Stride()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\n", r.ID, r.Surface, r.Lanes, r.Source, vertices)
	}
	_ = w.Flush()
}

func init() {
	inspectCmd.Flags().String("source", "", "road dataset to inspect (default from config)")
	inspectCmd.Flags().Int("head", 5, "number of roads to list")
	rootCmd.AddCommand(inspectCmd)
}
