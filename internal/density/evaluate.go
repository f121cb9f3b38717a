package density

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MetersToKilometers is the default length scale: projected metres to km.
const MetersToKilometers = 1.0 / 1000.0

// Prepared bundles a FeatureSet with its extent and spatial index so the
// index is built once and shared read-only across evaluations.
type Prepared struct {
	Features *FeatureSet
	Extent   Extent
	Index    *Index
}

// Prepare resolves the extent of fs and builds its spatial index.
func Prepare(fs *FeatureSet) (*Prepared, error) {
	ext, err := ResolveExtent(fs)
	if err != nil {
		return nil, err
	}
	return &Prepared{Features: fs, Extent: ext, Index: NewIndex(fs)}, nil
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWorkers sets the number of goroutines evaluating sample points.
// Values below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) {
		e.workers = n
	}
}

// WithLengthScale sets the factor applied to summed feature lengths.
func WithLengthScale(scale float64) EvaluatorOption {
	return func(e *Evaluator) {
		e.lengthScale = scale
	}
}

// Evaluator computes per-point feature density.
type Evaluator struct {
	workers     int
	lengthScale float64
}

// NewEvaluator creates an Evaluator. By default it uses every available CPU
// and reports kilometres for metre-based frames.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{lengthScale: MetersToKilometers}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// Workers returns the configured worker count.
func (e *Evaluator) Workers() int {
	return e.workers
}

// Evaluate sets Density on every point of grid to the scaled total length of
// features that come within radius of the point. A feature counts in full
// once any part of it touches the filled disk.
//
// On error every density in grid is reset to zero.
func (e *Evaluator) Evaluate(ctx context.Context, grid *Grid, p *Prepared, radius float64) error {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return invalidParam("radius", radius)
	}
	if p == nil || p.Features.Len() == 0 {
		return &EmptyInputError{Reason: "feature set has no features"}
	}
	if grid == nil {
		return eris.New("density: nil grid")
	}
	if grid.Frame != p.Features.Frame || !grid.Frame.Planar() {
		return &ProjectionMismatchError{Features: p.Features.Frame, Grid: grid.Frame}
	}
	idx := p.Index
	if idx == nil {
		idx = NewIndex(p.Features)
	}

	n := len(grid.Points)
	workers := min(e.workers, max(n, 1))
	chunk := (n + workers - 1) / workers

	log := zap.L().With(zap.String("component", "density.evaluate"))
	log.Debug("evaluating density",
		zap.Int("points", n),
		zap.Int("features", p.Features.Len()),
		zap.Float64("radius", radius),
		zap.Int("workers", workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if (i-start)%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				pt := &grid.Points[i]
				pt.Density = e.pointDensity(p.Features, idx, pt.X, pt.Y, radius)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for i := range grid.Points {
			grid.Points[i].Density = 0
		}
		return eris.Wrap(err, "density: evaluate")
	}

	return nil
}

// pointDensity sums the lengths of every feature intersecting the disk.
// Candidates arrive in ascending feature order, which fixes the summation
// order and keeps results bit-identical across runs and worker counts.
func (e *Evaluator) pointDensity(fs *FeatureSet, idx *Index, x, y, radius float64) float64 {
	var total float64
	c := geom.Coord{x, y}
	for _, pos := range idx.Candidates(x, y, radius) {
		f := &fs.Features[pos]
		if intersectsDisk(f.Geom, c, radius) {
			total += f.Length
		}
	}
	return total * e.lengthScale
}

// intersectsDisk reports whether any segment of g lies within radius of c.
func intersectsDisk(g geom.T, c geom.Coord, radius float64) bool {
	for _, ls := range lineParts(g) {
		if xy.DistanceFromPointToLineString(ls.Layout(), c, ls.FlatCoords()) <= radius {
			return true
		}
	}
	return false
}

// ComputeDensityGrid generates a grid over ext at the given spacing and
// evaluates it against fs. fs must already be in a planar frame.
func ComputeDensityGrid(ctx context.Context, fs *FeatureSet, ext Extent, spacing, radius float64, opts ...EvaluatorOption) (*Grid, error) {
	if fs.Len() == 0 {
		return nil, &EmptyInputError{Reason: "feature set has no features"}
	}
	grid, err := GenerateGrid(ext, spacing, fs.Frame)
	if err != nil {
		return nil, err
	}
	p := &Prepared{Features: fs, Extent: ext, Index: NewIndex(fs)}
	if err := NewEvaluator(opts...).Evaluate(ctx, grid, p, radius); err != nil {
		return nil, err
	}
	return grid, nil
}
