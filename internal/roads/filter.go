package roads

import (
	"strings"

	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
)

// FilterSurface keeps roads whose surface matches surface, ignoring case.
// When no road carries a surface attribute at all the dataset cannot be
// filtered and every road is returned. An empty surface disables filtering.
func FilterSurface(c *Collection, surface string) *Collection {
	out := &Collection{Frame: c.Frame}
	if surface == "" {
		out.Roads = append(out.Roads, c.Roads...)
		return out
	}

	tagged := false
	for _, r := range c.Roads {
		if r.Surface != "" {
			tagged = true
		}
		if strings.EqualFold(r.Surface, surface) {
			out.Roads = append(out.Roads, r)
		}
	}

	if !tagged {
		zap.L().Warn("roads: no surface attribute present, keeping all roads",
			zap.String("surface", surface),
			zap.Int("roads", c.Len()),
		)
		out.Roads = append(out.Roads[:0], c.Roads...)
	}
	return out
}

// Dedupe drops roads whose geometry is identical to an earlier road,
// keeping the first occurrence.
func Dedupe(c *Collection) *Collection {
	out := &Collection{Frame: c.Frame, Roads: make([]Road, 0, c.Len())}
	seen := make(map[string]struct{}, c.Len())
	for _, r := range c.Roads {
		key, err := wkb.Marshal(r.Geom, wkb.NDR)
		if err != nil {
			out.Roads = append(out.Roads, r)
			continue
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		out.Roads = append(out.Roads, r)
	}

	if dropped := c.Len() - len(out.Roads); dropped > 0 {
		zap.L().Debug("roads: dropped duplicate geometries", zap.Int("dropped", dropped))
	}
	return out
}
