package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	radius_m       REAL NOT NULL,
	spacing_m      REAL NOT NULL,
	top_k          INTEGER NOT NULL,
	point_count    INTEGER NOT NULL,
	max_density_km REAL NOT NULL DEFAULT 0,
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sample_points (
	analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	x           REAL NOT NULL,
	y           REAL NOT NULL,
	lon         REAL NOT NULL,
	lat         REAL NOT NULL,
	density_km  REAL NOT NULL,
	rank        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (analysis_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_sample_points_density ON sample_points(analysis_id, density_km DESC, idx);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *Analysis, points []Point) (string, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, source, radius_m, spacing_m, top_k, point_count, max_density_km, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Source, a.RadiusM, a.SpacingM, a.TopK, a.PointCount, a.MaxDensityKm, a.DurationMs, a.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert analysis")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sample_points (analysis_id, idx, x, y, lon, lat, density_km, rank) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: prepare sample points")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, a.ID, p.Index, p.X, p.Y, p.Lon, p.Lat, p.DensityKm, p.Rank); err != nil {
			return "", eris.Wrapf(err, "sqlite: insert sample point %d", p.Index)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit analysis")
	}
	return a.ID, nil
}

const analysisColumns = `id, source, radius_m, spacing_m, top_k, point_count, max_density_km, duration_ms, created_at`

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: analysis %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, limit int) ([]Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC, id LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) TopPoints(ctx context.Context, id string, k int) ([]Point, error) {
	if _, err := s.GetAnalysis(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, x, y, lon, lat, density_km, rank FROM sample_points
		 WHERE analysis_id = ? ORDER BY density_km DESC, idx ASC LIMIT ?`,
		id, listLimit(k),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: top points %s", id)
	}
	defer rows.Close() //nolint:errcheck

	var out []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Index, &p.X, &p.Y, &p.Lon, &p.Lat, &p.DensityKm, &p.Rank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: top points iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*Analysis, error) {
	var a Analysis
	if err := row.Scan(&a.ID, &a.Source, &a.RadiusM, &a.SpacingM, &a.TopK, &a.PointCount, &a.MaxDensityKm, &a.DurationMs, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
