package roads

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

type govEntry struct {
	pos  int
	rect rtreego.Rect
}

func (e *govEntry) Bounds() rtreego.Rect { return e.rect }

// Enrich returns a copy of osm where each road takes surface and lane
// values from the first road in gov (in gov order) whose geometry
// intersects it. Values are only replaced when the government value is
// present. Every OSM road is kept, matched or not.
func Enrich(osm, gov *Collection) (*Collection, error) {
	if osm.Frame != gov.Frame {
		return nil, eris.Errorf("roads: enrich frame mismatch: osm %s, gov %s", osm.Frame, gov.Frame)
	}

	objs := make([]rtreego.Spatial, 0, gov.Len())
	for i, r := range gov.Roads {
		rect, ok := boundsRect(r.Geom, 0)
		if !ok {
			continue
		}
		objs = append(objs, &govEntry{pos: i, rect: rect})
	}
	tree := rtreego.NewTree(2, 25, 50, objs...)

	out := &Collection{Frame: osm.Frame, Roads: make([]Road, len(osm.Roads))}
	var matched int
	for i, r := range osm.Roads {
		out.Roads[i] = r

		// Touching boxes count as disjoint in rtreego; pad the query.
		query, ok := boundsRect(r.Geom, 1e-9)
		if !ok {
			continue
		}
		hits := tree.SearchIntersect(query)
		positions := make([]int, len(hits))
		for j, h := range hits {
			positions[j] = h.(*govEntry).pos
		}
		sort.Ints(positions)

		for _, pos := range positions {
			g := gov.Roads[pos]
			if !linesIntersect(r.Geom, g.Geom) {
				continue
			}
			if g.Surface != "" {
				out.Roads[i].Surface = g.Surface
			}
			if g.Lanes > 0 {
				out.Roads[i].Lanes = g.Lanes
			}
			matched++
			break
		}
	}

	zap.L().Info("roads enriched",
		zap.Int("osm", osm.Len()),
		zap.Int("gov", gov.Len()),
		zap.Int("matched", matched),
	)
	return out, nil
}

func boundsRect(g geom.T, pad float64) (rtreego.Rect, bool) {
	if g == nil || g.Empty() {
		return rtreego.Rect{}, false
	}
	b := g.Bounds()
	pad = math.Max(pad, pad*math.Max(math.Abs(b.Max(0)), math.Abs(b.Max(1))))
	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min(0) - pad, b.Min(1) - pad},
		rtreego.Point{b.Max(0) + pad, b.Max(1) + pad},
	)
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}

// linesIntersect reports whether any segment of a touches any segment of b.
func linesIntersect(a, b geom.T) bool {
	sbs := segments(b)
	for _, sa := range segments(a) {
		for _, sb := range sbs {
			if xy.DistanceFromLineToLine(sa[0], sa[1], sb[0], sb[1]) == 0 {
				return true
			}
		}
	}
	return false
}

func segments(g geom.T) [][2]geom.Coord {
	var out [][2]geom.Coord
	add := func(ls *geom.LineString) {
		for i := 1; i < ls.NumCoords(); i++ {
			out = append(out, [2]geom.Coord{ls.Coord(i - 1), ls.Coord(i)})
		}
	}
	switch t := g.(type) {
	case *geom.LineString:
		add(t)
	case *geom.MultiLineString:
		for i := 0; i < t.NumLineStrings(); i++ {
			add(t.LineString(i))
		}
	}
	return out
}
