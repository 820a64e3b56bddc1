// Package transfer implements the transfer functions that classify
// normalized scalar intensities into opacities during rendering.
package transfer

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidControlPoints is returned when a control-point sequence is empty,
// out of [0,1], or not strictly increasing in position.
var ErrInvalidControlPoints = errors.New("invalid transfer function control points")

// ControlPoint maps a normalized intensity to an opacity, both in [0,1]
type ControlPoint struct {
	Position float64 `yaml:"position" toml:"position"`
	Opacity  float64 `yaml:"opacity" toml:"opacity"`
}

// Function is an immutable piecewise-linear opacity curve.
type Function struct {
	name     string
	isPreset bool
	points   []ControlPoint
}

// New creates a user-defined function. The points are copied.
func New(name string, points []ControlPoint) (*Function, error) {
	if err := validate(points); err != nil {
		return nil, fmt.Errorf("transfer function %q: %w", name, err)
	}
	return &Function{name: name, points: append([]ControlPoint(nil), points...)}, nil
}

func validate(points []ControlPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no points", ErrInvalidControlPoints)
	}
	for i, p := range points {
		if !inUnit(p.Position) || !inUnit(p.Opacity) {
			return fmt.Errorf("%w: point %d (%g, %g) outside [0,1]", ErrInvalidControlPoints, i, p.Position, p.Opacity)
		}
		if i > 0 && p.Position <= points[i-1].Position {
			return fmt.Errorf("%w: point %d position %g not after %g", ErrInvalidControlPoints, i, p.Position, points[i-1].Position)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func (f *Function) Name() string   { return f.name }
func (f *Function) IsPreset() bool { return f.isPreset }

// Points returns a copy of the control points.
func (f *Function) Points() []ControlPoint {
	return append([]ControlPoint(nil), f.points...)
}

// Equal reports whether two functions are the same for selection purposes,
// which is by name.
func (f *Function) Equal(other *Function) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.name == other.name
}

// Opacity samples the curve at a normalized position. The query is clamped
// to [0,1]; queries before the first or after the last control point return
// that point's opacity, and everything between is linearly interpolated.
func (f *Function) Opacity(position float64) float64 {
	if math.IsNaN(position) {
		position = 0
	}
	position = math.Max(0, math.Min(1, position))

	pts := f.points
	if position <= pts[0].Position {
		return pts[0].Opacity
	}
	last := pts[len(pts)-1]
	if position >= last.Position {
		return last.Opacity
	}
	// First point strictly after position; pts[hi-1] <= position < pts[hi].
	lo, hi := 0, len(pts)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if pts[mid].Position <= position {
			lo = mid
		} else {
			hi = mid
		}
	}
	a, b := pts[lo], pts[hi]
	t := (position - a.Position) / (b.Position - a.Position)
	return a.Opacity + t*(b.Opacity-a.Opacity)
}

// Bake samples the curve at n evenly spaced positions from 0 to 1 inclusive,
// producing a lookup table for upload to the rasterizer.
func (f *Function) Bake(n int) []float32 {
	if n <= 0 {
		return nil
	}
	table := make([]float32, n)
	if n == 1 {
		table[0] = float32(f.Opacity(0))
		return table
	}
	for i := range table {
		table[i] = float32(f.Opacity(float64(i) / float64(n-1)))
	}
	return table
}

func (f *Function) String() string {
	return fmt.Sprintf("%s (%d points)", f.name, len(f.points))
}
