package density

import (
	"github.com/twpayne/go-geom"
)

// Extent is an axis-aligned bounding rectangle.
type Extent struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// Width returns MaxX - MinX.
func (e Extent) Width() float64 { return e.MaxX - e.MinX }

// Height returns MaxY - MinY.
func (e Extent) Height() float64 { return e.MaxY - e.MinY }

// Valid reports whether Min <= Max on both axes.
func (e Extent) Valid() bool {
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// ResolveExtent returns the bounding rectangle of every coordinate in fs.
// A nil or empty FeatureSet, or one whose geometries carry no coordinates,
// yields an EmptyInputError.
func ResolveExtent(fs *FeatureSet) (Extent, error) {
	if fs.Len() == 0 {
		return Extent{}, &EmptyInputError{Reason: "feature set has no features"}
	}

	b := geom.NewBounds(geom.XY)
	for i := range fs.Features {
		g := fs.Features[i].Geom
		if g == nil || g.Empty() {
			continue
		}
		b.Extend(g)
	}
	if b.IsEmpty() {
		return Extent{}, &EmptyInputError{Reason: "feature set has no coordinates"}
	}

	return Extent{
		MinX: b.Min(0),
		MinY: b.Min(1),
		MaxX: b.Max(0),
		MaxY: b.Max(1),
	}, nil
}
