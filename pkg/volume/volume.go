// Package volume holds the reconstructed 3D scalar grid and answers the
// dimension, coordinate and slice queries made against it.
package volume

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidDimensions is returned when a dimension is not positive or
	// does not match the number of voxels supplied.
	ErrInvalidDimensions = errors.New("invalid volume dimensions")

	// ErrInvalidSpacing is returned when a spacing component is not positive.
	ErrInvalidSpacing = errors.New("invalid voxel spacing")

	// ErrInvalidRange is returned when the minimum intensity exceeds the maximum.
	ErrInvalidRange = errors.New("invalid intensity range")
)

// Spacing is the physical size of a voxel in mm along each axis
type Spacing struct {
	X, Y, Z float64
}

// Params is the full contract the decoding side hands over to build a volume
type Params struct {
	// Width, Height, Depth are the grid dimensions in voxels
	Width, Height, Depth int

	// Voxels is the flat grid indexed as x + y*Width + z*Width*Height
	Voxels []uint16

	// MinValue and MaxValue are the observed intensity range
	MinValue, MaxValue uint16

	Spacing Spacing

	// Display metadata only
	PatientName string
	Modality    string
}

// Volume is an immutable 3D scalar grid with physical geometry. All
// accessors are safe for concurrent use.
type Volume struct {
	width, height, depth int
	voxels               []uint16
	minValue, maxValue   uint16
	spacing              Spacing
	patientName          string
	modality             string

	checksumOnce sync.Once
	checksum     uint64
}

// New validates p and returns the volume. New takes ownership of p.Voxels;
// the caller must not modify it afterwards.
func New(p Params) (*Volume, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Depth <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, p.Width, p.Height, p.Depth)
	}
	if n := p.Width * p.Height * p.Depth; len(p.Voxels) != n {
		return nil, fmt.Errorf("%w: have %d voxels, need %d", ErrInvalidDimensions, len(p.Voxels), n)
	}
	if !(p.Spacing.X > 0 && p.Spacing.Y > 0 && p.Spacing.Z > 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpacing, p.Spacing)
	}
	if p.MinValue > p.MaxValue {
		return nil, fmt.Errorf("%w: min %d > max %d", ErrInvalidRange, p.MinValue, p.MaxValue)
	}
	return &Volume{
		width:       p.Width,
		height:      p.Height,
		depth:       p.Depth,
		voxels:      p.Voxels,
		minValue:    p.MinValue,
		maxValue:    p.MaxValue,
		spacing:     p.Spacing,
		patientName: p.PatientName,
		modality:    p.Modality,
	}, nil
}

func (v *Volume) Width() int              { return v.width }
func (v *Volume) Height() int             { return v.height }
func (v *Volume) Depth() int              { return v.depth }
func (v *Volume) MinValue() uint16        { return v.minValue }
func (v *Volume) MaxValue() uint16        { return v.maxValue }
func (v *Volume) Spacing() Spacing        { return v.spacing }
func (v *Volume) PatientName() string     { return v.patientName }
func (v *Volume) Modality() string        { return v.modality }
func (v *Volume) NumVoxels() int          { return len(v.voxels) }
func (v *Volume) SizeInBytes() uint64     { return uint64(len(v.voxels)) * 2 }
func (v *Volume) PhysicalWidth() float64  { return float64(v.width) * v.spacing.X }
func (v *Volume) PhysicalHeight() float64 { return float64(v.height) * v.spacing.Y }
func (v *Volume) PhysicalDepth() float64  { return float64(v.depth) * v.spacing.Z }

// Voxels returns the backing grid; callers must treat it as read-only.
func (v *Volume) Voxels() []uint16 { return v.voxels }

// Contains reports whether (x, y, z) addresses a voxel inside the grid.
func (v *Volume) Contains(x, y, z int) bool {
	return x >= 0 && x < v.width && y >= 0 && y < v.height && z >= 0 && z < v.depth
}

// Index returns the flat index of (x, y, z), or false if it is out of range.
func (v *Volume) Index(x, y, z int) (int, bool) {
	if !v.Contains(x, y, z) {
		return 0, false
	}
	return x + y*v.width + z*v.width*v.height, true
}

// Voxel returns the stored intensity at (x, y, z). Out-of-range coordinates
// return false rather than an error since interactive callers probe the
// boundaries constantly.
func (v *Volume) Voxel(x, y, z int) (uint16, bool) {
	idx, ok := v.Index(x, y, z)
	if !ok {
		return 0, false
	}
	return v.voxels[idx], true
}

// Normalized maps an intensity to [0,1] using the observed range. A flat
// volume normalizes everything to 0.
func (v *Volume) Normalized(value float64) float64 {
	span := float64(v.maxValue) - float64(v.minValue)
	if span <= 0 {
		return 0
	}
	n := (value - float64(v.minValue)) / span
	return math.Max(0, math.Min(1, n))
}

// PhysicalPoint converts voxel coordinates into physical mm.
func (v *Volume) PhysicalPoint(x, y, z float64) r3.Vec {
	return r3.Vec{X: x * v.spacing.X, Y: y * v.spacing.Y, Z: z * v.spacing.Z}
}

// VoxelPoint converts a physical point in mm into voxel coordinates.
func (v *Volume) VoxelPoint(p r3.Vec) r3.Vec {
	return r3.Vec{X: p.X / v.spacing.X, Y: p.Y / v.spacing.Y, Z: p.Z / v.spacing.Z}
}

// LongestDiagonal is the length in mm of the longest ray through the volume.
func (v *Volume) LongestDiagonal() float64 {
	return r3.Norm(r3.Vec{X: v.PhysicalWidth(), Y: v.PhysicalHeight(), Z: v.PhysicalDepth()})
}

func (v *Volume) String() string {
	return fmt.Sprintf("%dx%dx%d voxels (%.1fx%.1fx%.1f mm, %s) %s %q",
		v.width, v.height, v.depth,
		v.PhysicalWidth(), v.PhysicalHeight(), v.PhysicalDepth(),
		humanize.Bytes(v.SizeInBytes()), v.modality, v.patientName)
}
