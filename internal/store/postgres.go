package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/density-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool. poolCfg may
// be nil.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	radius_m       DOUBLE PRECISION NOT NULL,
	spacing_m      DOUBLE PRECISION NOT NULL,
	top_k          INTEGER NOT NULL,
	point_count    INTEGER NOT NULL,
	max_density_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms    BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sample_points (
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	x           DOUBLE PRECISION NOT NULL,
	y           DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	lat         DOUBLE PRECISION NOT NULL,
	density_km  DOUBLE PRECISION NOT NULL,
	rank        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (analysis_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sample_points_density ON sample_points(analysis_id, density_km DESC, idx);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var samplePointColumns = []string{"analysis_id", "idx", "x", "y", "lon", "lat", "density_km", "rank"}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, a *Analysis, points []Point) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO analyses (id, source, radius_m, spacing_m, top_k, point_count, max_density_km, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Source, a.RadiusM, a.SpacingM, a.TopK, a.PointCount, a.MaxDensityKm, a.DurationMs, a.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert analysis")
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{a.ID, int32(p.Index), p.X, p.Y, p.Lon, p.Lat, p.DensityKm, int32(p.Rank)}
	}
	if _, err := db.CopyFrom(ctx, tx, "sample_points", samplePointColumns, rows); err != nil {
		return "", eris.Wrap(err, "postgres: insert sample points")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit analysis")
	}
	return a.ID, nil
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, id LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) TopPoints(ctx context.Context, id string, k int) ([]Point, error) {
	if _, err := s.GetAnalysis(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT idx, x, y, lon, lat, density_km, rank FROM sample_points
		 WHERE analysis_id = $1 ORDER BY density_km DESC, idx ASC LIMIT $2`,
		id, listLimit(k),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: top points %s", id)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var (
			p         Point
			idx, rank int32
		)
		if err := rows.Scan(&idx, &p.X, &p.Y, &p.Lon, &p.Lat, &p.DensityKm, &rank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		p.Index, p.Rank = int(idx), int(rank)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: top points iterate")
}
