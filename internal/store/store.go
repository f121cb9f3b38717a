package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Analysis is the stored summary of one density run.
type Analysis struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	RadiusM      float64   `json:"radius_m"`
	SpacingM     float64   `json:"spacing_m"`
	TopK         int       `json:"top_k"`
	PointCount   int       `json:"point_count"`
	MaxDensityKm float64   `json:"max_density_km"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Point is one stored sample point. Rank is 1-based for the top-K points of
// the run and 0 for the rest.
type Point struct {
	Index     int     `json:"index"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
	DensityKm float64 `json:"density_km"`
	Rank      int     `json:"rank"`
}

// Store persists analysis runs and their sample points.
type Store interface {
	// SaveAnalysis stores a and its points in one transaction. a.ID and
	// a.CreatedAt are assigned when empty; the stored ID is returned.
	SaveAnalysis(ctx context.Context, a *Analysis, points []Point) (string, error)
	GetAnalysis(ctx context.Context, id string) (*Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]Analysis, error)
	// TopPoints returns the k densest points of a run, ties in grid order.
	TopPoints(ctx context.Context, id string, k int) ([]Point, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when an analysis does not exist.
var ErrNotFound = errors.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the configured backend and runs migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		st, err = NewSQLite(dsn)
	case DriverPostgres, "postgresql":
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 20

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
