// Package projection converts geometries between longitude/latitude and
// spherical Web Mercator, and converts the distance units used on the
// command line.
package projection

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/density-cli/internal/density"
)

// EarthRadius is the sphere radius used by EPSG:3857, in metres.
const EarthRadius = 6378137.0

// MaxLatitude is the latitude at which Web Mercator becomes square.
const MaxLatitude = 85.05112878

// ToWebMercator projects a longitude/latitude pair to EPSG:3857 metres.
// Latitudes beyond ±MaxLatitude are clamped.
func ToWebMercator(lon, lat float64) (x, y float64) {
	lat = math.Max(-MaxLatitude, math.Min(MaxLatitude, lat))
	x = EarthRadius * lon * math.Pi / 180
	y = EarthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// ToLonLat is the inverse of ToWebMercator.
func ToLonLat(x, y float64) (lon, lat float64) {
	lon = x / EarthRadius * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/EarthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

func transformFunc(from, to density.Frame) (func(x, y float64) (float64, float64), error) {
	switch {
	case from == to:
		return func(x, y float64) (float64, float64) { return x, y }, nil
	case from == density.FrameWGS84 && to == density.FrameWebMercator:
		return ToWebMercator, nil
	case from == density.FrameWebMercator && to == density.FrameWGS84:
		return ToLonLat, nil
	default:
		return nil, eris.Errorf("projection: unsupported transform %s -> %s", from, to)
	}
}

// ProjectGeometry returns a copy of g transformed from one frame to another.
// Points, line strings and multi line strings are supported.
func ProjectGeometry(g geom.T, from, to density.Frame) (geom.T, error) {
	fn, err := transformFunc(from, to)
	if err != nil {
		return nil, err
	}
	return project(g, fn)
}

func project(g geom.T, fn func(x, y float64) (float64, float64)) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn)), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn)), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn), append([]int(nil), t.Ends()...)), nil
	case nil:
		return nil, eris.New("projection: nil geometry")
	default:
		return nil, eris.Errorf("projection: unsupported geometry %T", g)
	}
}

// transformFlat maps the first two ordinates of every coordinate and copies
// any remaining ones.
func transformFlat(flat []float64, stride int, fn func(x, y float64) (float64, float64)) []float64 {
	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = fn(out[i], out[i+1])
	}
	return out
}

// ProjectFeatureSet returns a new FeatureSet in frame to, with lengths
// recomputed in the target units. fs is not modified.
func ProjectFeatureSet(fs *density.FeatureSet, to density.Frame) (*density.FeatureSet, error) {
	if fs == nil {
		return nil, eris.New("projection: nil feature set")
	}
	fn, err := transformFunc(fs.Frame, to)
	if err != nil {
		return nil, err
	}

	out := &density.FeatureSet{Frame: to, Features: make([]density.Feature, 0, len(fs.Features))}
	for _, f := range fs.Features {
		g, err := project(f.Geom, fn)
		if err != nil {
			return nil, eris.Wrapf(err, "projection: feature %d", f.ID)
		}
		nf, err := density.NewFeature(f.ID, g, f.Surface, f.Lanes)
		if err != nil {
			return nil, eris.Wrapf(err, "projection: feature %d", f.ID)
		}
		out.Features = append(out.Features, nf)
	}
	return out, nil
}
