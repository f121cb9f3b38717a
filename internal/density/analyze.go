package density

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Params holds the parameters of one analysis run, in projected units.
type Params struct {
	Spacing float64 `json:"spacing_m" yaml:"spacing_m"`
	Radius  float64 `json:"radius_m" yaml:"radius_m"`
	TopK    int     `json:"top_k" yaml:"top_k"`
}

// Validate checks that every parameter is positive.
func (p Params) Validate() error {
	if !(p.Spacing > 0) || !finite(p.Spacing) {
		return invalidParam("spacing", p.Spacing)
	}
	if !(p.Radius > 0) || !finite(p.Radius) {
		return invalidParam("radius", p.Radius)
	}
	if p.TopK <= 0 {
		return invalidParam("k", float64(p.TopK))
	}
	return nil
}

// Result is the outcome of Analyze.
type Result struct {
	Params   Params        `json:"params"`
	Extent   Extent        `json:"extent"`
	Grid     *Grid         `json:"grid"`
	Top      []SamplePoint `json:"top"`
	Duration time.Duration `json:"duration"`
}

// Analyze runs the whole pipeline over a prepared dataset: grid over the
// dataset extent, density evaluation, top-K ranking.
func Analyze(ctx context.Context, p *Prepared, params Params, opts ...EvaluatorOption) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if p == nil || p.Features.Len() == 0 {
		return nil, &EmptyInputError{Reason: "feature set has no features"}
	}

	start := time.Now()
	grid, err := GenerateGrid(p.Extent, params.Spacing, p.Features.Frame)
	if err != nil {
		return nil, err
	}

	ev := NewEvaluator(opts...)
	if err := ev.Evaluate(ctx, grid, p, params.Radius); err != nil {
		return nil, err
	}

	top, err := TopK(grid, params.TopK)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Params:   params,
		Extent:   p.Extent,
		Grid:     grid,
		Top:      top,
		Duration: time.Since(start),
	}

	zap.L().Info("density analysis complete",
		zap.Int("features", p.Features.Len()),
		zap.Int("points", grid.Len()),
		zap.Float64("spacing", params.Spacing),
		zap.Float64("radius", params.Radius),
		zap.Int("workers", ev.Workers()),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}
