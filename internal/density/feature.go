package density

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Frame identifies the coordinate reference system coordinates are expressed in.
type Frame string

// Known frames.
const (
	FrameWGS84       Frame = "EPSG:4326"
	FrameWebMercator Frame = "EPSG:3857"
)

// SRID returns the EPSG code of f, or 0 for an unknown frame.
func (f Frame) SRID() int {
	switch f {
	case FrameWGS84:
		return 4326
	case FrameWebMercator:
		return 3857
	default:
		return 0
	}
}

// Planar reports whether Euclidean distance in f approximates ground metres.
func (f Frame) Planar() bool {
	return f == FrameWebMercator
}

// Feature is one road segment.
type Feature struct {
	ID      int     `json:"id"`
	Geom    geom.T  `json:"-"`
	Length  float64 `json:"length"` // in frame units
	Surface string  `json:"surface,omitempty"`
	Lanes   int     `json:"lanes,omitempty"`
}

// FeatureSet is an ordered, read-only collection of line features in one frame.
type FeatureSet struct {
	Frame    Frame
	Features []Feature
}

// NewFeature builds a Feature from a LineString or MultiLineString and
// computes its length in the geometry's own units.
func NewFeature(id int, g geom.T, surface string, lanes int) (Feature, error) {
	length, err := LineLength(g)
	if err != nil {
		return Feature{}, err
	}
	return Feature{ID: id, Geom: g, Length: length, Surface: surface, Lanes: lanes}, nil
}

// LineLength returns the planar length of a linear geometry.
func LineLength(g geom.T) (float64, error) {
	switch t := g.(type) {
	case *geom.LineString:
		return t.Length(), nil
	case *geom.MultiLineString:
		return t.Length(), nil
	case nil:
		return 0, eris.New("density: nil geometry")
	default:
		return 0, eris.Errorf("density: unsupported geometry %T", g)
	}
}

// Len returns the number of features.
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Features)
}

// TotalLength sums the length of every feature, in frame units.
func (fs *FeatureSet) TotalLength() float64 {
	var total float64
	for i := range fs.Features {
		total += fs.Features[i].Length
	}
	return total
}

// lineParts returns the non-empty LineStrings making up a linear geometry.
func lineParts(g geom.T) []*geom.LineString {
	switch t := g.(type) {
	case *geom.LineString:
		if t.Empty() {
			return nil
		}
		return []*geom.LineString{t}
	case *geom.MultiLineString:
		parts := make([]*geom.LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			if ls := t.LineString(i); !ls.Empty() {
				parts = append(parts, ls)
			}
		}
		return parts
	default:
		return nil
	}
}
