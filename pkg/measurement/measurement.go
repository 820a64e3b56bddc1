// Package measurement computes lengths and angles between points in the
// physical (mm) coordinate space of a volume.
package measurement

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateAngle is returned when either arm of an angle has zero length,
// leaving the angle undefined.
var ErrDegenerateAngle = errors.New("angle arm has zero length")

// Type is the kind of measurement
type Type int

const (
	Length Type = iota
	Angle
)

func (t Type) String() string {
	switch t {
	case Length:
		return "length"
	case Angle:
		return "angle"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// PointsRequired is the number of points needed to complete a measurement.
func (t Type) PointsRequired() int {
	if t == Angle {
		return 3
	}
	return 2
}

// Units
const (
	Millimeters = "mm"
	Degrees     = "°"
)

// Measurement is a completed measurement and the points that produced it.
// For an angle the points are (point1, vertex, point2).
type Measurement struct {
	ID     string
	Type   Type
	Value  float64
	Unit   string
	Points []r3.Vec
}

// FormattedValue renders the value with one decimal and its unit.
func (m Measurement) FormattedValue() string {
	if m.Unit == Degrees {
		return fmt.Sprintf("%.1f%s", m.Value, m.Unit)
	}
	return fmt.Sprintf("%.1f %s", m.Value, m.Unit)
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s %s", m.Type, m.FormattedValue())
}

// NewLength measures the Euclidean distance between two physical points.
func NewLength(from, to r3.Vec) Measurement {
	return Measurement{
		ID:     uuid.NewString(),
		Type:   Length,
		Value:  Distance(from, to),
		Unit:   Millimeters,
		Points: []r3.Vec{from, to},
	}
}

// NewAngle measures the angle at vertex between the arms to point1 and point2.
func NewAngle(point1, vertex, point2 r3.Vec) (Measurement, error) {
	deg, err := AngleDegrees(point1, vertex, point2)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		ID:     uuid.NewString(),
		Type:   Angle,
		Value:  deg,
		Unit:   Degrees,
		Points: []r3.Vec{point1, vertex, point2},
	}, nil
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(b, a))
}

// AngleDegrees returns the angle in degrees in [0, 180] between
// (point1 - vertex) and (point2 - vertex).
func AngleDegrees(point1, vertex, point2 r3.Vec) (float64, error) {
	u := r3.Sub(point1, vertex)
	v := r3.Sub(point2, vertex)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu == 0 || nv == 0 {
		return 0, ErrDegenerateAngle
	}
	cos := r3.Dot(u, v) / (nu * nv)
	// Rounding can push |cos| past 1 for (anti)parallel arms.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, nil
}
