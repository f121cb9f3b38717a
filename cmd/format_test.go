//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/density-cli/internal/roads"
	"github.com/sells-group/density-cli/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []store.Analysis{
		{
			ID:           "abc12345-6789-0000-0000-000000000000",
			Source:       "geojson:enriched_roads.geojson",
			RadiusM:      16093.4,
			SpacingM:     40233.5,
			PointCount:   1200,
			MaxDensityKm: 812.25,
			CreatedAt:    now,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Source:    "shapefile:/data/very/long/path/to/some/state/roads/enriched.shp",
			RadiusM:   8046.7,
			SpacingM:  8046.7,
			CreatedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "RADIUS_MI")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "10.0")
	assert.Contains(t, output, "25.0")
	assert.Contains(t, output, "812.25")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "...")
	assert.Contains(t, output, "enriched.shp")
}

func TestFormatRun(t *testing.T) {
	run := &store.Analysis{
		ID:        "abc12345",
		Source:    "geojson:roads.geojson",
		RadiusM:   16093.4,
		SpacingM:  40233.5,
		CreatedAt: time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC),
	}
	points := []store.Point{
		{Index: 4, Lon: -94.5, Lat: 39.1, DensityKm: 42.5, Rank: 1},
		{Index: 2, Lon: -94.4, Lat: 39.0, DensityKm: 10, Rank: 2},
	}

	var buf bytes.Buffer
	formatRun(&buf, run, points)

	output := buf.String()
	assert.Contains(t, output, "geojson:roads.geojson")
	assert.Contains(t, output, "10.0 mi")
	assert.Contains(t, output, "-94.50000")
	assert.Contains(t, output, "42.50")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatInspect(t *testing.T) {
	c := testCollection()
	c.Roads = append(c.Roads, roads.Road{ID: 9})

	var buf bytes.Buffer
	formatInspect(&buf, "roads.geojson", c, 2)

	output := buf.String()
	assert.Contains(t, output, "roads.geojson: 5 roads (EPSG:4326)")
	assert.Contains(t, output, "(none)")
	lines := strings.Split(output, "\n")
	// asphalt (2) sorts ahead of the single-road surfaces
	var surfaceRows []string
	for _, l := range lines[3:] {
		if l == "" {
			break
		}
		surfaceRows = append(surfaceRows, l)
	}
	require.NotEmpty(t, surfaceRows)
	assert.True(t, strings.HasPrefix(surfaceRows[0], "asphalt"))
	assert.Contains(t, output, "VERTICES")
}

func TestWriteCollection(t *testing.T) {
	dir := t.TempDir()
	c := testCollection()

	geoPath := filepath.Join(dir, "out.geojson")
	require.NoError(t, writeCollection(geoPath, c))
	back, err := roads.ReadGeoJSONFile(geoPath)
	require.NoError(t, err)
	assert.Equal(t, c.Len(), back.Len())

	shpPath := filepath.Join(dir, "out.shp")
	require.NoError(t, writeCollection(shpPath, c))
	_, err = os.Stat(shpPath)
	require.NoError(t, err)

	err = writeCollection(filepath.Join(dir, "out.gpkg"), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output")
}
