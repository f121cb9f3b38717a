package roads

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/density-cli/internal/db"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidTableName reports whether name is a plain or schema-qualified
// identifier safe to interpolate into SQL.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

func openPostGIS(ctx context.Context, src Source) (*Collection, error) {
	if src.DatabaseURL == "" {
		return nil, eris.New("roads: postgis source requires a database url")
	}
	pool, err := db.Connect(ctx, src.DatabaseURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "roads: connect postgis")
	}
	defer pool.Close()

	return LoadPostGIS(ctx, pool, src.Table)
}

// LoadPostGIS reads every row of table, which must have columns id, geom,
// surface and lanes. Geometries arrive as WKB via ST_AsBinary.
func LoadPostGIS(ctx context.Context, pool db.Pool, table string) (*Collection, error) {
	if !ValidTableName(table) {
		return nil, eris.Errorf("roads: invalid table name %q", table)
	}

	query := `SELECT id, ST_AsBinary(geom), COALESCE(surface, ''), COALESCE(lanes, 0) FROM ` + table + ` ORDER BY id`
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "roads: query %s", table)
	}
	defer rows.Close()

	c := &Collection{}
	var skipped int
	for rows.Next() {
		var (
			id      int64
			raw     []byte
			surface string
			lanes   int32
		)
		if err := rows.Scan(&id, &raw, &surface, &lanes); err != nil {
			return nil, eris.Wrapf(err, "roads: scan %s", table)
		}

		g, err := wkb.Unmarshal(raw)
		if err != nil {
			skipped++
			continue
		}
		switch g.(type) {
		case *geom.LineString, *geom.MultiLineString:
		default:
			skipped++
			continue
		}

		c.Roads = append(c.Roads, Road{
			ID:      int(id),
			Geom:    g,
			Surface: surface,
			Lanes:   int(lanes),
			Source:  "postgis",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "roads: iterate %s", table)
	}

	if skipped > 0 {
		zap.L().Debug("roads: skipped postgis rows", zap.String("table", table), zap.Int("skipped", skipped))
	}
	return c, nil
}

// WritePostGIS creates table if needed and upserts every road keyed by id.
// Geometries are staged as WKB and stored with the SRID of c.Frame.
func WritePostGIS(ctx context.Context, pool db.Pool, table string, c *Collection) (int64, error) {
	if !ValidTableName(table) {
		return 0, eris.Errorf("roads: invalid table name %q", table)
	}
	srid := c.Frame.SRID()
	if srid == 0 {
		return 0, eris.Errorf("roads: no SRID for frame %q", c.Frame)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id      BIGINT PRIMARY KEY,
	geom    geometry(Geometry, %d) NOT NULL,
	surface TEXT,
	lanes   INTEGER,
	source  TEXT
)`, table, srid)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return 0, eris.Wrapf(err, "roads: create %s", table)
	}

	rows := make([][]any, 0, c.Len())
	for _, r := range c.Roads {
		raw, err := wkb.Marshal(r.Geom, wkb.NDR)
		if err != nil {
			return 0, eris.Wrapf(err, "roads: encode road %d", r.ID)
		}
		rows = append(rows, []any{int64(r.ID), raw, r.Surface, int32(r.Lanes), r.Source})
	}

	n, err := db.StageAndMerge(ctx, pool, db.MergeConfig{
		Table: table,
		Key:   "id",
		Columns: []db.StagedColumn{
			{Name: "id", Type: "BIGINT"},
			{Name: "geom", Type: "BYTEA", Expr: fmt.Sprintf("ST_SetSRID(ST_GeomFromWKB(%%s), %d)", srid)},
			{Name: "surface", Type: "TEXT"},
			{Name: "lanes", Type: "INTEGER"},
			{Name: "source", Type: "TEXT"},
		},
	}, rows)
	if err != nil {
		return 0, err
	}

	zap.L().Info("roads written to postgis",
		zap.String("table", table),
		zap.Int("srid", srid),
		zap.Int64("rows", n),
	)
	return n, nil
}
