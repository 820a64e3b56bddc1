package volume

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// maxStatSamples bounds the number of voxels visited by Statistics.
const maxStatSamples = 1 << 16

// SampleTrilinear interpolates the grid at p given in voxel coordinates.
// Points outside [0, dim-1] on any axis return false.
func (v *Volume) SampleTrilinear(p r3.Vec) (float64, bool) {
	if p.X < 0 || p.Y < 0 || p.Z < 0 ||
		p.X > float64(v.width-1) || p.Y > float64(v.height-1) || p.Z > float64(v.depth-1) {
		return 0, false
	}
	x0, y0, z0 := int(p.X), int(p.Y), int(p.Z)
	x1, y1, z1 := min(x0+1, v.width-1), min(y0+1, v.height-1), min(z0+1, v.depth-1)
	fx, fy, fz := p.X-float64(x0), p.Y-float64(y0), p.Z-float64(z0)

	at := func(x, y, z int) float64 {
		return float64(v.voxels[x+y*v.width+z*v.width*v.height])
	}
	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }

	c00 := lerp(at(x0, y0, z0), at(x1, y0, z0), fx)
	c10 := lerp(at(x0, y1, z0), at(x1, y1, z0), fx)
	c01 := lerp(at(x0, y0, z1), at(x1, y0, z1), fx)
	c11 := lerp(at(x0, y1, z1), at(x1, y1, z1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz), true
}

// Statistics holds summary values of the voxel intensities
type Statistics struct {
	Mean   float64
	StdDev float64
}

// Statistics estimates the mean and standard deviation of the intensities
// from an evenly strided sample of at most maxStatSamples voxels.
func (v *Volume) Statistics() Statistics {
	stride := 1
	if len(v.voxels) > maxStatSamples {
		stride = int(math.Ceil(float64(len(v.voxels)) / maxStatSamples))
	}
	samples := make([]float64, 0, len(v.voxels)/stride+1)
	for i := 0; i < len(v.voxels); i += stride {
		samples = append(samples, float64(v.voxels[i]))
	}
	mean, std := stat.MeanStdDev(samples, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Statistics{Mean: mean, StdDev: std}
}

// Checksum returns a 64-bit xxhash of the dimensions and voxel grid. Identical
// inputs always produce identical checksums; the value is computed once.
func (v *Volume) Checksum() uint64 {
	v.checksumOnce.Do(func() {
		d := xxhash.New()
		var hdr [12]byte
		binary.LittleEndian.PutUint32(hdr[0:], uint32(v.width))
		binary.LittleEndian.PutUint32(hdr[4:], uint32(v.height))
		binary.LittleEndian.PutUint32(hdr[8:], uint32(v.depth))
		d.Write(hdr[:])

		buf := make([]byte, 0, 8192)
		for _, value := range v.voxels {
			buf = binary.LittleEndian.AppendUint16(buf, value)
			if len(buf) == cap(buf) {
				d.Write(buf)
				buf = buf[:0]
			}
		}
		d.Write(buf)
		v.checksum = d.Sum64()
	})
	return v.checksum
}
