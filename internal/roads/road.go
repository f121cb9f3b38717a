// Package roads loads, filters, merges and writes road segment datasets and
// converts them into density feature sets.
package roads

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/density-cli/internal/density"
)

// Road is one road segment with the attributes used for filtering and
// enrichment.
type Road struct {
	ID      int
	Geom    geom.T // *geom.LineString or *geom.MultiLineString
	Surface string
	Lanes   int
	Source  string
}

// Collection is a set of roads carried in a single coordinate frame.
type Collection struct {
	Frame density.Frame
	Roads []Road
}

// Len returns the number of roads. A nil collection has none.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Roads)
}

// ToFeatureSet converts the collection for density evaluation. Lengths are
// computed in the collection's frame.
func (c *Collection) ToFeatureSet() (*density.FeatureSet, error) {
	fs := &density.FeatureSet{Frame: c.Frame, Features: make([]density.Feature, 0, c.Len())}
	for _, r := range c.Roads {
		f, err := density.NewFeature(r.ID, r.Geom, r.Surface, r.Lanes)
		if err != nil {
			return nil, err
		}
		fs.Features = append(fs.Features, f)
	}
	return fs, nil
}
