package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteTable prints ranked rows as an aligned text table. Densities use
// thousands separators.
func WriteTable(w io.Writer, rows []Row) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "RANK\tLON\tLAT\tROAD KM\tROAD MI\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%.5f\t%.5f\t%s\t%s\t\n",
			r.Rank, r.Lon, r.Lat,
			p.Sprintf("%.2f", r.DensityKm),
			p.Sprintf("%.2f", r.DensityMi),
		)
	}
	return tw.Flush()
}

// WriteSummary prints one line per summary statistic.
func WriteSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)
	_, err := p.Fprintf(w, "points: %d (%d with roads)  mean: %.2f km  median: %.2f km  p90: %.2f km  max: %.2f km\n",
		s.Points, s.NonZero, s.Mean, s.Median, s.P90, s.Max)
	return err
}
