package roads

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// ReadGeoJSONFile reads a GeoJSON FeatureCollection of road lines.
func ReadGeoJSONFile(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roads: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	c, err := ReadGeoJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "roads: read %s", path)
	}
	return c, nil
}

// ReadGeoJSON decodes a FeatureCollection. LineString and MultiLineString
// features are kept; other geometry types are skipped. Properties surface,
// lanes, source and id are read case-insensitively.
func ReadGeoJSON(r io.Reader) (*Collection, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "roads: decode geojson")
	}

	c := &Collection{Roads: make([]Road, 0, len(fc.Features))}
	var skipped int
	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case *geom.LineString, *geom.MultiLineString:
		default:
			skipped++
			continue
		}
		if f.Geometry.Empty() {
			skipped++
			continue
		}

		r := Road{ID: i, Geom: f.Geometry}
		if id, err := strconv.Atoi(f.ID); err == nil {
			r.ID = id
		} else if v, ok := property(f.Properties, "id"); ok {
			if id, ok := toInt(v); ok {
				r.ID = id
			}
		}
		if v, ok := property(f.Properties, "surface"); ok {
			r.Surface = toString(v)
		}
		if v, ok := property(f.Properties, "lanes"); ok {
			if n, ok := toInt(v); ok {
				r.Lanes = n
			} else {
				r.Lanes = parseLanes(toString(v))
			}
		}
		if v, ok := property(f.Properties, "source"); ok {
			r.Source = toString(v)
		}
		c.Roads = append(c.Roads, r)
	}

	if skipped > 0 {
		zap.L().Debug("roads: skipped non-line geojson features", zap.Int("skipped", skipped))
	}
	return c, nil
}

// WriteGeoJSON encodes c as a FeatureCollection. Empty attributes are
// omitted from properties.
func WriteGeoJSON(w io.Writer, c *Collection) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, c.Len())}
	for _, r := range c.Roads {
		props := map[string]interface{}{"id": r.ID}
		if r.Surface != "" {
			props["surface"] = r.Surface
		}
		if r.Lanes > 0 {
			props["lanes"] = r.Lanes
		}
		if r.Source != "" {
			props["source"] = r.Source
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(r.ID),
			Geometry:   r.Geom,
			Properties: props,
		})
	}

	if err := json.NewEncoder(w).Encode(&fc); err != nil {
		return eris.Wrap(err, "roads: encode geojson")
	}
	return nil
}

// WriteGeoJSONFile writes c to path as GeoJSON.
func WriteGeoJSONFile(path string, c *Collection) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "roads: create %s", path)
	}
	if err := WriteGeoJSON(f, c); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "roads: close %s", path)
}

func property(props map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := props[name]; ok && v != nil {
		return v, true
	}
	for k, v := range props {
		if strings.EqualFold(k, name) && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toInt(v interface{}) (int, bool) {
	if f, ok := v.(float64); ok {
		return int(f), true
	}
	return 0, false
}

// parseLanes reads a lane count such as "2", "2.0" or the OSM multi-value
// form "2;3", taking the first value. Unparseable input yields 0.
func parseLanes(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ";|,"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
