package render

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Scale bounds. Zero or runaway scale factors make the transform degenerate.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// Transform places the volume in the scene: scale, then rotate, then
// translate.
type Transform struct {
	Position r3.Vec
	Rotation quat.Number
	Scale    float64
}

// Identity returns the untransformed placement.
func Identity() Transform {
	return Transform{Rotation: quat.Number{Real: 1}, Scale: 1}
}

// ClampScale limits s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// normalizeRotation returns q scaled to unit length. Zero and non-finite
// quaternions become the identity rotation.
func normalizeRotation(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// AxisAngle builds a unit rotation of angle radians about axis. A zero axis
// gives the identity rotation.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	if r3.Norm(axis) == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Number(r3.NewRotation(angle, axis))
}

// Apply maps a point from volume space into scene space.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	p = r3.Scale(t.Scale, p)
	p = r3.Rotation(normalizeRotation(t.Rotation)).Rotate(p)
	return r3.Add(p, t.Position)
}

// ModelMatrix returns the 4x4 column-vector matrix T*R*S for the rasterizer.
func (t Transform) ModelMatrix() *mat.Dense {
	q := normalizeRotation(t.Rotation)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	s := t.Scale

	rot := [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rot[i][j]*s)
		}
	}
	m.Set(0, 3, t.Position.X)
	m.Set(1, 3, t.Position.Y)
	m.Set(2, 3, t.Position.Z)
	m.Set(3, 3, 1)
	return m
}
