package roads

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// shapeReader is the record iterator shared by shp.Reader and shp.ZipReader.
type shapeReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Attribute(n int) string
	Fields() []shp.Field
	Err() error
}

// ReadShapefile reads PolyLine records from a .shp file. Records without a
// usable geometry are skipped.
func ReadShapefile(path string) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roads: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	return readShapes(reader, path)
}

// ReadZIP reads the first shapefile inside a ZIP archive.
func ReadZIP(path string) (*Collection, error) {
	names, err := shp.ShapesInZip(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roads: open zip %s", path)
	}
	if len(names) == 0 {
		return nil, eris.Errorf("roads: no .shp file found in %s", path)
	}
	sort.Strings(names)

	reader, err := shp.OpenShapeFromZip(path, names[0])
	if err != nil {
		return nil, eris.Wrapf(err, "roads: open %s in %s", names[0], path)
	}
	defer func() { _ = reader.Close() }()

	return readShapes(reader, path+"!"+names[0])
}

func readShapes(reader shapeReader, name string) (*Collection, error) {
	surfaceIdx := fieldIndex(reader.Fields(), "surface")
	lanesIdx := fieldIndex(reader.Fields(), "lanes")
	sourceIdx := fieldIndex(reader.Fields(), "source")
	idIdx := fieldIndex(reader.Fields(), "id")

	c := &Collection{}
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		pl, ok := shape.(*shp.PolyLine)
		if !ok {
			skipped++
			continue
		}
		g := polyLineToMultiLineString(pl)
		if g == nil {
			skipped++
			continue
		}

		r := Road{ID: n, Geom: g}
		if idIdx >= 0 {
			if id, err := strconv.Atoi(attribute(reader, idIdx)); err == nil {
				r.ID = id
			}
		}
		if surfaceIdx >= 0 {
			r.Surface = attribute(reader, surfaceIdx)
		}
		if lanesIdx >= 0 {
			r.Lanes = parseLanes(attribute(reader, lanesIdx))
		}
		if sourceIdx >= 0 {
			r.Source = attribute(reader, sourceIdx)
		}
		c.Roads = append(c.Roads, r)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "roads: read shapefile %s", name)
	}

	if skipped > 0 {
		zap.L().Debug("roads: skipped shapefile records",
			zap.String("file", name),
			zap.Int("skipped", skipped),
		)
	}
	return c, nil
}

func attribute(reader shapeReader, idx int) string {
	return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
}

// fieldIndex returns the index of a named field, or -1 if not found.
func fieldIndex(fields []shp.Field, name string) int {
	for i, f := range fields {
		if strings.EqualFold(f.String(), name) {
			return i
		}
	}
	return -1
}

// polyLineToMultiLineString converts a shapefile PolyLine to a
// geom.MultiLineString, dropping parts with fewer than two points.
func polyLineToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		end := int32(len(pl.Points))
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		}
		if end-start < 2 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("roads: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// WriteShapefile writes c as a PolyLine shapefile with id, surface, lanes
// and source attributes.
func WriteShapefile(path string, c *Collection) error {
	w, err := shp.Create(path, shp.POLYLINE)
	if err != nil {
		return eris.Wrapf(err, "roads: create shapefile %s", path)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.NumberField("id", 10),
		shp.StringField("surface", 32),
		shp.NumberField("lanes", 4),
		shp.StringField("source", 16),
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "roads: set shapefile fields")
	}

	for _, r := range c.Roads {
		parts := shapeParts(r.Geom)
		if len(parts) == 0 {
			continue
		}
		row := int(w.Write(shp.NewPolyLine(parts)))
		for i, v := range []any{r.ID, truncate(r.Surface, 32), r.Lanes, truncate(r.Source, 16)} {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "roads: write attribute for road %d", r.ID)
			}
		}
	}
	return nil
}

func shapeParts(g geom.T) [][]shp.Point {
	var parts [][]shp.Point
	add := func(ls *geom.LineString) {
		if ls.NumCoords() < 2 {
			return
		}
		pts := make([]shp.Point, ls.NumCoords())
		for i := range pts {
			c := ls.Coord(i)
			pts[i] = shp.Point{X: c.X(), Y: c.Y()}
		}
		parts = append(parts, pts)
	}

	switch t := g.(type) {
	case *geom.LineString:
		add(t)
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			add(t.LineString(i))
		}
	}
	return parts
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
