package density

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

// R-tree fan-out (2D, min=25 children, max=50 children).
const (
	indexMinChildren = 25
	indexMaxChildren = 50
)

// indexEntry is the R-tree record for one feature.
type indexEntry struct {
	pos  int // position in FeatureSet.Features
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e *indexEntry) Bounds() rtreego.Rect {
	return e.rect
}

// Index is a read-only R-tree over the bounding boxes of a FeatureSet.
// It is safe for concurrent searches once built.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex bulk-loads an R-tree over every non-empty feature in fs.
func NewIndex(fs *FeatureSet) *Index {
	objs := make([]rtreego.Spatial, 0, fs.Len())
	for i := range fs.Features {
		g := fs.Features[i].Geom
		if g == nil || g.Empty() {
			continue
		}
		b := g.Bounds()
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{b.Min(0), b.Min(1)},
			rtreego.Point{b.Max(0), b.Max(1)},
		)
		if err != nil {
			continue
		}
		objs = append(objs, &indexEntry{pos: i, rect: rect})
	}

	return &Index{
		tree: rtreego.NewTree(2, indexMinChildren, indexMaxChildren, objs...),
		size: len(objs),
	}
}

// Size returns the number of indexed features.
func (idx *Index) Size() int {
	return idx.size
}

// Candidates returns, in ascending feature order, the positions of features
// whose bounding box intersects the square circumscribing the disk of the
// given radius around (x, y).
func (idx *Index) Candidates(x, y, radius float64) []int {
	if idx.size == 0 {
		return nil
	}
	// rtreego treats touching rectangles as disjoint, so widen the query a
	// hair to keep features exactly on the disk boundary.
	tol := math.Max(radius, 0)
	tol += math.Max(tol*1e-9, 1e-9)
	query := rtreego.Point{x, y}.ToRect(tol)
	hits := idx.tree.SearchIntersect(query)
	if len(hits) == 0 {
		return nil
	}

	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.(*indexEntry).pos
	}
	sort.Ints(out)
	return out
}
