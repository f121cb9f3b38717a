package roads

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/density-cli/internal/density"
)

func line(coords ...geom.Coord) *geom.LineString {
	return geom.NewLineString(geom.XY).MustSetCoords(coords)
}

func sampleCollection() *Collection {
	return &Collection{
		Frame: density.FrameWGS84,
		Roads: []Road{
			{ID: 10, Geom: line(geom.Coord{-94.6, 39.0}, geom.Coord{-94.5, 39.1}), Surface: "asphalt", Lanes: 2, Source: "osm"},
			{ID: 11, Geom: line(geom.Coord{-94.4, 39.0}, geom.Coord{-94.4, 39.2}, geom.Coord{-94.3, 39.2}), Surface: "gravel", Source: "osm"},
		},
	}
}

func TestShapefile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roads.shp")
	require.NoError(t, WriteShapefile(path, sampleCollection()))

	c, err := ReadShapefile(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	assert.Equal(t, 10, c.Roads[0].ID)
	assert.Equal(t, "asphalt", c.Roads[0].Surface)
	assert.Equal(t, 2, c.Roads[0].Lanes)
	assert.Equal(t, "osm", c.Roads[0].Source)
	assert.Equal(t, 0, c.Roads[1].Lanes)

	mls, ok := c.Roads[1].Geom.(*geom.MultiLineString)
	require.True(t, ok)
	require.Equal(t, 1, mls.NumLineStrings())
	assert.Equal(t, 3, mls.LineString(0).NumCoords())
	assert.InDelta(t, -94.3, mls.LineString(0).Coord(2).X(), 1e-12)
}

func TestReadShapefile_Missing(t *testing.T) {
	_, err := ReadShapefile(filepath.Join(t.TempDir(), "nope.shp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roads: open shapefile")
}

func zipShapefile(t *testing.T, dir, base string) string {
	t.Helper()
	zipPath := filepath.Join(dir, base+".zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		src, err := os.Open(filepath.Join(dir, base+ext))
		require.NoError(t, err)
		w, err := zw.Create(base + ext)
		require.NoError(t, err)
		_, err = io.Copy(w, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())
	return zipPath
}

func TestReadZIP(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteShapefile(filepath.Join(dir, "gov.shp"), sampleCollection()))
	zipPath := zipShapefile(t, dir, "gov")

	c, err := ReadZIP(zipPath)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "gravel", c.Roads[1].Surface)
}

func TestReadGeoJSON(t *testing.T) {
	doc := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "id": 7, "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]},
	     "properties": {"SURFACE": "Asphalt", "lanes": "2;3", "source": "osm"}},
	    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [5, 5]}, "properties": {}},
	    {"type": "Feature", "geometry": null, "properties": {"surface": "asphalt"}},
	    {"type": "Feature", "geometry": {"type": "MultiLineString", "coordinates": [[[2, 2], [3, 3]], [[4, 4], [5, 4]]]},
	     "properties": {"id": 42, "lanes": 4}}
	  ]
	}`

	c, err := ReadGeoJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	assert.Equal(t, 7, c.Roads[0].ID)
	assert.Equal(t, "Asphalt", c.Roads[0].Surface)
	assert.Equal(t, 2, c.Roads[0].Lanes)
	assert.Equal(t, "osm", c.Roads[0].Source)

	assert.Equal(t, 42, c.Roads[1].ID)
	assert.Equal(t, 4, c.Roads[1].Lanes)
	assert.IsType(t, &geom.MultiLineString{}, c.Roads[1].Geom)
}

func TestReadGeoJSON_Invalid(t *testing.T) {
	_, err := ReadGeoJSON(strings.NewReader(`{"type": "Feature"}`))
	assert.Error(t, err)
}

func TestGeoJSON_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, sampleCollection()))

	c, err := ReadGeoJSON(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, 11, c.Roads[1].ID)
	assert.Equal(t, "gravel", c.Roads[1].Surface)
	assert.Equal(t, 0, c.Roads[1].Lanes)
}

func TestOpen_Dispatch(t *testing.T) {
	dir := t.TempDir()
	gj := filepath.Join(dir, "roads.geojson")
	require.NoError(t, WriteGeoJSONFile(gj, sampleCollection()))
	shpPath := filepath.Join(dir, "roads.shp")
	require.NoError(t, WriteShapefile(shpPath, sampleCollection()))

	for _, path := range []string{gj, shpPath} {
		c, err := Open(context.Background(), Source{Path: path})
		require.NoError(t, err, path)
		assert.Equal(t, density.FrameWGS84, c.Frame)
		assert.Equal(t, 2, c.Len())
	}

	_, err := Open(context.Background(), Source{Path: filepath.Join(dir, "roads.gpkg")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported source")
}

func TestSource_Key(t *testing.T) {
	assert.Equal(t, "geojson:a.geojson", Source{Path: "a.geojson"}.Key())
	assert.Equal(t, "postgis:public.roads", Source{Kind: KindPostGIS, Table: "public.roads"}.Key())
	assert.Equal(t, KindZIP, KindFromPath("ROADS.ZIP"))
}

func TestFilterSurface(t *testing.T) {
	c := &Collection{Roads: []Road{
		{ID: 1, Surface: "asphalt"},
		{ID: 2, Surface: "Gravel"},
		{ID: 3, Surface: "ASPHALT"},
		{ID: 4},
	}}

	out := FilterSurface(c, "asphalt")
	require.Equal(t, 2, out.Len())
	assert.Equal(t, 1, out.Roads[0].ID)
	assert.Equal(t, 3, out.Roads[1].ID)
	assert.Equal(t, 4, c.Len())

	assert.Equal(t, 4, FilterSurface(c, "").Len())
	assert.Equal(t, 0, FilterSurface(c, "concrete").Len())
}

func TestFilterSurface_NoAttributeFallsBack(t *testing.T) {
	c := &Collection{Roads: []Road{{ID: 1}, {ID: 2}}}
	assert.Equal(t, 2, FilterSurface(c, "asphalt").Len())
}

func TestDedupe(t *testing.T) {
	a := line(geom.Coord{0, 0}, geom.Coord{1, 1})
	c := &Collection{Roads: []Road{
		{ID: 1, Geom: a},
		{ID: 2, Geom: line(geom.Coord{0, 0}, geom.Coord{1, 1})},
		{ID: 3, Geom: line(geom.Coord{1, 1}, geom.Coord{0, 0})},
	}}

	out := Dedupe(c)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, 1, out.Roads[0].ID)
	assert.Equal(t, 3, out.Roads[1].ID)
}

func TestEnrich(t *testing.T) {
	osm := &Collection{Frame: density.FrameWGS84, Roads: []Road{
		{ID: 1, Geom: line(geom.Coord{0, 0}, geom.Coord{10, 0}), Surface: "unpaved", Lanes: 1},
		{ID: 2, Geom: line(geom.Coord{0, 5}, geom.Coord{10, 5}), Surface: "asphalt", Lanes: 2},
		{ID: 3, Geom: line(geom.Coord{0, 20}, geom.Coord{10, 20}), Surface: "gravel"},
	}}
	gov := &Collection{Frame: density.FrameWGS84, Roads: []Road{
		{ID: 100, Geom: line(geom.Coord{5, -1}, geom.Coord{5, 1}), Surface: "asphalt", Lanes: 4},
		{ID: 101, Geom: line(geom.Coord{6, -1}, geom.Coord{6, 1}), Surface: "concrete", Lanes: 6},
		// Touches road 2 only at its end point.
		{ID: 102, Geom: line(geom.Coord{10, 5}, geom.Coord{12, 7})},
	}}

	out, err := Enrich(osm, gov)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	assert.Equal(t, "asphalt", out.Roads[0].Surface)
	assert.Equal(t, 4, out.Roads[0].Lanes)

	// Matched but the government record has no values: OSM values stand.
	assert.Equal(t, "asphalt", out.Roads[1].Surface)
	assert.Equal(t, 2, out.Roads[1].Lanes)

	assert.Equal(t, "gravel", out.Roads[2].Surface)
	assert.Equal(t, 0, out.Roads[2].Lanes)

	// Inputs untouched.
	assert.Equal(t, "unpaved", osm.Roads[0].Surface)
}

func TestEnrich_FrameMismatch(t *testing.T) {
	_, err := Enrich(&Collection{Frame: density.FrameWGS84}, &Collection{Frame: density.FrameWebMercator})
	assert.Error(t, err)
}

func TestToFeatureSet(t *testing.T) {
	fs, err := sampleCollection().ToFeatureSet()
	require.NoError(t, err)
	assert.Equal(t, density.FrameWGS84, fs.Frame)
	require.Len(t, fs.Features, 2)
	assert.Equal(t, 10, fs.Features[0].ID)
	assert.Greater(t, fs.Features[1].Length, 0.0)
}

func TestParseLanes(t *testing.T) {
	tests := map[string]int{"2": 2, " 3 ": 3, "2;3": 2, "1.0": 1, "": 0, "many": 0}
	for in, want := range tests {
		assert.Equal(t, want, parseLanes(in), in)
	}
}

func TestValidTableName(t *testing.T) {
	assert.True(t, ValidTableName("roads"))
	assert.True(t, ValidTableName("public.roads_2024"))
	assert.False(t, ValidTableName("roads; DROP TABLE x"))
	assert.False(t, ValidTableName(""))
	assert.False(t, ValidTableName("a.b.c"))
}

func TestLoadPostGIS(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	raw, err := wkb.Marshal(line(geom.Coord{0, 0}, geom.Coord{1, 1}), wkb.NDR)
	require.NoError(t, err)
	point, err := wkb.Marshal(geom.NewPointFlat(geom.XY, []float64{1, 1}), wkb.NDR)
	require.NoError(t, err)

	rows := mock.NewRows([]string{"id", "st_asbinary", "surface", "lanes"}).
		AddRow(int64(5), raw, "asphalt", int32(2)).
		AddRow(int64(6), point, "", int32(0)).
		AddRow(int64(7), []byte{0xff}, "", int32(0))
	mock.ExpectQuery(`SELECT id, ST_AsBinary\(geom\)`).WillReturnRows(rows)

	c, err := LoadPostGIS(context.Background(), mock, "public.roads")
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, 5, c.Roads[0].ID)
	assert.Equal(t, "asphalt", c.Roads[0].Surface)
	assert.Equal(t, 2, c.Roads[0].Lanes)
	assert.Equal(t, "postgis", c.Roads[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPostGIS_InvalidTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = LoadPostGIS(context.Background(), mock, "roads where 1=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestLoadPostGIS_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id`).WillReturnError(pgx.ErrTxClosed)
	_, err = LoadPostGIS(context.Background(), mock, "roads")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roads: query roads")
}

func TestWritePostGIS(t *testing.T) {
	tests := []struct {
		frame density.Frame
		srid  string
	}{
		{density.FrameWGS84, "4326"},
		{density.FrameWebMercator, "3857"},
	}
	for _, tt := range tests {
		t.Run(string(tt.frame), func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			c := sampleCollection()
			c.Frame = tt.frame

			cols := []string{"id", "geom", "surface", "lanes", "source"}
			mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS roads \(.*geometry\(Geometry, ` + tt.srid + `\)`).
				WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
			mock.ExpectBegin()
			mock.ExpectExec(`CREATE TEMP TABLE "_stage_roads"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
			mock.ExpectCopyFrom(pgx.Identifier{"_stage_roads"}, cols).WillReturnResult(2)
			mock.ExpectExec(`INSERT INTO "roads" .*ST_SetSRID\(ST_GeomFromWKB\(s."geom"\), ` + tt.srid + `\)`).
				WillReturnResult(pgxmock.NewResult("INSERT", 2))
			mock.ExpectCommit()

			n, err := WritePostGIS(context.Background(), mock, "roads", c)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWritePostGIS_UnknownFrame(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	c := sampleCollection()
	c.Frame = "EPSG:27700"

	_, err = WritePostGIS(context.Background(), mock, "roads", c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no SRID for frame "EPSG:27700"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
