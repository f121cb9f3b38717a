package roads

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/density-cli/internal/density"
)

// Kind identifies the storage format of a road source.
type Kind string

// Supported source kinds.
const (
	KindShapefile Kind = "shapefile"
	KindZIP       Kind = "zip"
	KindGeoJSON   Kind = "geojson"
	KindPostGIS   Kind = "postgis"
)

// Source describes where a road dataset lives.
type Source struct {
	Kind        Kind   // detected from Path when empty
	Path        string // file path for file sources
	Table       string // table name for PostGIS
	DatabaseURL string // connection string for PostGIS
	Frame       density.Frame
}

// Key returns a stable identifier for the source, used as a cache key.
func (s Source) Key() string {
	kind := s.Kind
	if kind == "" {
		kind = KindFromPath(s.Path)
	}
	if kind == KindPostGIS {
		return string(kind) + ":" + s.Table
	}
	return string(kind) + ":" + s.Path
}

// KindFromPath infers a file source kind from its extension.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return KindShapefile
	case ".zip":
		return KindZIP
	case ".geojson", ".json":
		return KindGeoJSON
	default:
		return ""
	}
}

// Open loads every road from src. File sources and PostGIS tables default to
// EPSG:4326 when src.Frame is empty.
func Open(ctx context.Context, src Source) (*Collection, error) {
	kind := src.Kind
	if kind == "" {
		kind = KindFromPath(src.Path)
	}
	frame := src.Frame
	if frame == "" {
		frame = density.FrameWGS84
	}

	log := zap.L().With(zap.String("component", "roads.open"), zap.String("kind", string(kind)))

	var (
		c   *Collection
		err error
	)
	switch kind {
	case KindShapefile:
		c, err = ReadShapefile(src.Path)
	case KindZIP:
		c, err = ReadZIP(src.Path)
	case KindGeoJSON:
		c, err = ReadGeoJSONFile(src.Path)
	case KindPostGIS:
		c, err = openPostGIS(ctx, src)
	default:
		return nil, eris.Errorf("roads: unsupported source %q", src.Path)
	}
	if err != nil {
		return nil, err
	}

	c.Frame = frame
	log.Info("roads loaded", zap.String("source", src.Key()), zap.Int("roads", c.Len()))
	return c, nil
}
