package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/density-cli/internal/db"
	"github.com/sells-group/density-cli/internal/roads"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Merge government surface and lane attributes into an OSM road network",
	Long:  "For every OSM road, copies surface and lane counts from the first intersecting government road. OSM values are kept where the government data has none.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		osmPath, _ := cmd.Flags().GetString("osm")
		govPath, _ := cmd.Flags().GetString("gov")
		outPath, _ := cmd.Flags().GetString("out")
		table, _ := cmd.Flags().GetString("postgis-table")

		osm, err := roads.Open(ctx, parseSource(osmPath, cfg))
		if err != nil {
			return eris.Wrap(err, "enrich: load osm roads")
		}
		gov, err := roads.Open(ctx, parseSource(govPath, cfg))
		if err != nil {
			return eris.Wrap(err, "enrich: load government roads")
		}

		merged, err := roads.Enrich(osm, gov)
		if err != nil {
			return eris.Wrap(err, "enrich")
		}

		if outPath != "" {
			if err := writeCollection(outPath, merged); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Wrote %d roads to %s\n", merged.Len(), outPath)
		}

		if table != "" {
			if err := cfg.Validate("postgis"); err != nil {
				return err
			}
			pool, err := db.Connect(ctx, cfg.PostGISURL(), nil)
			if err != nil {
				return eris.Wrap(err, "enrich: connect postgis")
			}
			defer pool.Close()

			n, err := roads.WritePostGIS(ctx, pool, table, merged)
			if err != nil {
				return eris.Wrap(err, "enrich: write postgis")
			}
			fmt.Fprintf(os.Stdout, "Upserted %d roads into %s\n", n, table)
		}

		zap.L().Info("enrichment complete", zap.Int("roads", merged.Len()))
		return nil
	},
}

// writeCollection writes roads as GeoJSON or a shapefile depending on the
// output extension.
func writeCollection(path string, c *roads.Collection) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return roads.WriteShapefile(path, c)
	case ".geojson", ".json":
		return roads.WriteGeoJSONFile(path, c)
	default:
		return eris.Errorf("enrich: unsupported output %q (want .geojson or .shp)", path)
	}
}

func init() {
	enrichCmd.Flags().String("osm", "", "OSM road dataset (.shp, .zip, .geojson or postgis:<table>)")
	enrichCmd.Flags().String("gov", "", "government road dataset with surface and lane attributes")
	enrichCmd.Flags().String("out", "enriched_roads.geojson", "output file (.geojson or .shp)")
	enrichCmd.Flags().String("postgis-table", "", "also upsert the merged roads into this PostGIS table")
	_ = enrichCmd.MarkFlagRequired("osm")
	_ = enrichCmd.MarkFlagRequired("gov")
	rootCmd.AddCommand(enrichCmd)
}
