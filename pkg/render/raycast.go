package render

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/pkg/transfer"
	"volumeviewer/pkg/volume"
)

// earlyTermination stops front-to-back compositing once the ray is opaque.
const earlyTermination = 0.99

// RayResult is the accumulated outcome of one ray.
type RayResult struct {
	// Value is the displayed intensity in [0,1]: the maximum for MIP, the
	// composited gray level for DVR and the hit intensity for isosurfaces
	Value float64

	// Opacity is the accumulated alpha in [0,1]
	Opacity float64

	// Hit is set when an isosurface sample was found
	Hit bool

	// Samples is the number of unclipped samples taken
	Samples int
}

// RayParams is the per-frame state a ray is cast with.
type RayParams struct {
	Volume           *volume.Volume
	TransferFunction *transfer.Function
	Mode             Mode
	WindowLevel      WindowLevel
	SamplingRate     int
	ClippingPlanes   []ClippingPlane
}

// RayParams collects the per-frame ray state from a snapshot.
func (s ViewState) RayParams() RayParams {
	return RayParams{
		Volume:           s.Volume,
		TransferFunction: s.TransferFunction,
		Mode:             s.Mode,
		WindowLevel:      s.WindowLevel,
		SamplingRate:     s.SamplingRate(),
		ClippingPlanes:   s.ClippingPlanes,
	}
}

// CastRay is the reference implementation of the sampling algorithm front
// ends must reproduce. origin and dir are in the volume's physical space (mm).
// The step is LongestDiagonal/SamplingRate and samples sit at the middle of
// each step from where the ray enters the volume box, so the longest ray
// through the volume takes exactly SamplingRate samples. Classification (the
// isosurface test and the transfer function) works on normalized intensity;
// the window/level only maps the displayed value.
func CastRay(p RayParams, origin, dir r3.Vec) RayResult {
	var res RayResult
	if p.Volume == nil || p.TransferFunction == nil || p.Mode == nil || p.SamplingRate <= 0 {
		return res
	}
	n := r3.Norm(dir)
	if n == 0 {
		return res
	}
	dir = r3.Scale(1/n, dir)

	vol := p.Volume
	tNear, tFar, ok := intersectBox(origin, dir, r3.Vec{X: vol.PhysicalWidth(), Y: vol.PhysicalHeight(), Z: vol.PhysicalDepth()})
	if !ok {
		return res
	}
	step := vol.LongestDiagonal() / float64(p.SamplingRate)
	maxVoxel := r3.Vec{X: float64(vol.Width() - 1), Y: float64(vol.Height() - 1), Z: float64(vol.Depth() - 1)}

	var maxValue, color, alpha float64
	// No chord through the box is longer than the diagonal.
	for i := 0; i < p.SamplingRate; i++ {
		t := tNear + (float64(i)+0.5)*step
		if t > tFar {
			break
		}
		pos := r3.Add(origin, r3.Scale(t, dir))
		if Clipped(p.ClippingPlanes, pos) {
			continue
		}
		vp := clampVec(vol.VoxelPoint(pos), maxVoxel)
		raw, ok := vol.SampleTrilinear(vp)
		if !ok {
			continue
		}
		value := vol.Normalized(raw)
		res.Samples++

		switch m := p.Mode.(type) {
		case MIP:
			maxValue = math.Max(maxValue, value)

		case DirectVolume:
			a := p.TransferFunction.Opacity(value)
			color += (1 - alpha) * a * p.WindowLevel.Apply(value)
			alpha += (1 - alpha) * a
			if alpha >= earlyTermination {
				return RayResult{Value: color, Opacity: alpha, Samples: res.Samples}
			}

		case Isosurface:
			if math.Abs(value-m.Threshold) <= m.Tolerance {
				return RayResult{Value: p.WindowLevel.Apply(value), Opacity: 1, Hit: true, Samples: res.Samples}
			}

		default:
			panic(fmt.Sprintf("render: unhandled mode %T", m))
		}
	}

	switch p.Mode.(type) {
	case MIP:
		if res.Samples > 0 {
			res.Value = p.WindowLevel.Apply(maxValue)
			res.Opacity = p.TransferFunction.Opacity(maxValue)
		}
	case DirectVolume:
		res.Value, res.Opacity = color, alpha
	case Isosurface:
	}
	return res
}

// intersectBox clips the ray against the box [0, size] with the slab method,
// returning the parametric entry and exit distances.
func intersectBox(origin, dir, size r3.Vec) (tNear, tFar float64, ok bool) {
	tNear, tFar = math.Inf(-1), math.Inf(1)
	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	s := [3]float64{size.X, size.Y, size.Z}
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < 0 || o[i] > s[i] {
				return 0, 0, false
			}
			continue
		}
		t1, t2 := (0-o[i])/d[i], (s[i]-o[i])/d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tNear = math.Max(tNear, t1)
		tFar = math.Min(tFar, t2)
	}
	tNear = math.Max(tNear, 0)
	return tNear, tFar, tNear <= tFar
}

func clampVec(p, hi r3.Vec) r3.Vec {
	return r3.Vec{
		X: math.Max(0, math.Min(hi.X, p.X)),
		Y: math.Max(0, math.Min(hi.Y, p.Y)),
		Z: math.Max(0, math.Min(hi.Z, p.Z)),
	}
}
