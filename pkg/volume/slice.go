package volume

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Orientation names the anatomical plane a slice is extracted along
type Orientation int

const (
	// Axial slices are XY planes at a fixed z
	Axial Orientation = iota
	// Sagittal slices are YZ planes at a fixed x
	Sagittal
	// Coronal slices are XZ planes at a fixed y
	Coronal
)

func (o Orientation) String() string {
	switch o {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// ParseOrientation accepts the plane names as well as the axis letters the
// slice is fixed along (z, x, y).
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "axial", "z":
		return Axial, nil
	case "sagittal", "x":
		return Sagittal, nil
	case "coronal", "y":
		return Coronal, nil
	}
	return 0, fmt.Errorf("invalid orientation: %s (must be axial, sagittal or coronal)", s)
}

// Slice is a 2D plane extracted from a volume. Pixels are stored row-major
// as u + v*Width where u and v are the in-plane axes:
//
//	Axial:    u = x, v = y
//	Sagittal: u = y, v = z
//	Coronal:  u = x, v = z
type Slice struct {
	Orientation Orientation
	Index       int
	Width       int
	Height      int
	Pixels      []uint16

	// PixelSpacing is the physical size of a pixel along u and v in mm
	PixelSpacing [2]float64

	// MinValue and MaxValue are the source volume's intensity range
	MinValue, MaxValue uint16
}

// At returns the intensity at (u, v), or false if it lies outside the slice.
func (s *Slice) At(u, v int) (uint16, bool) {
	if u < 0 || u >= s.Width || v < 0 || v >= s.Height {
		return 0, false
	}
	return s.Pixels[u+v*s.Width], true
}

// Image renders the slice as a 16-bit grayscale image stretched over the
// volume's intensity range.
func (s *Slice) Image() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	span := float64(s.MaxValue) - float64(s.MinValue)
	for v := 0; v < s.Height; v++ {
		for u := 0; u < s.Width; u++ {
			value := s.Pixels[u+v*s.Width]
			var y uint16
			if span > 0 {
				n := (float64(value) - float64(s.MinValue)) / span
				if n < 0 {
					n = 0
				} else if n > 1 {
					n = 1
				}
				y = uint16(n*65535 + 0.5)
			}
			img.SetGray16(u, v, color.Gray16{Y: y})
		}
	}
	return img
}

// Count returns the number of slices available along an orientation.
func (v *Volume) Count(o Orientation) int {
	switch o {
	case Axial:
		return v.depth
	case Sagittal:
		return v.width
	case Coronal:
		return v.height
	}
	return 0
}

// Slice extracts the plane at index along the given orientation. It returns
// false if index is outside [0, Count(o)).
func (v *Volume) Slice(o Orientation, index int) (*Slice, bool) {
	if index < 0 || index >= v.Count(o) {
		return nil, false
	}
	s := &Slice{
		Orientation: o,
		Index:       index,
		MinValue:    v.minValue,
		MaxValue:    v.maxValue,
	}
	plane := v.width * v.height

	switch o {
	case Axial:
		s.Width, s.Height = v.width, v.height
		s.PixelSpacing = [2]float64{v.spacing.X, v.spacing.Y}
		s.Pixels = make([]uint16, plane)
		copy(s.Pixels, v.voxels[index*plane:(index+1)*plane])

	case Sagittal:
		s.Width, s.Height = v.height, v.depth
		s.PixelSpacing = [2]float64{v.spacing.Y, v.spacing.Z}
		s.Pixels = make([]uint16, v.height*v.depth)
		for z := 0; z < v.depth; z++ {
			for y := 0; y < v.height; y++ {
				s.Pixels[y+z*v.height] = v.voxels[index+y*v.width+z*plane]
			}
		}

	case Coronal:
		s.Width, s.Height = v.width, v.depth
		s.PixelSpacing = [2]float64{v.spacing.X, v.spacing.Z}
		s.Pixels = make([]uint16, v.width*v.depth)
		for z := 0; z < v.depth; z++ {
			row := index*v.width + z*plane
			copy(s.Pixels[z*v.width:(z+1)*v.width], v.voxels[row:row+v.width])
		}
	}
	return s, true
}

// AxialSlice extracts the XY plane at z = index.
func (v *Volume) AxialSlice(index int) (*Slice, bool) { return v.Slice(Axial, index) }

// SagittalSlice extracts the YZ plane at x = index.
func (v *Volume) SagittalSlice(index int) (*Slice, bool) { return v.Slice(Sagittal, index) }

// CoronalSlice extracts the XZ plane at y = index.
func (v *Volume) CoronalSlice(index int) (*Slice, bool) { return v.Slice(Coronal, index) }

// Region copies the sub-grid starting at (x0, y0, z0) with the given size.
func (v *Volume) Region(x0, y0, z0, sizeX, sizeY, sizeZ int) ([]uint16, error) {
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("region size must be positive, got %dx%dx%d", sizeX, sizeY, sizeZ)
	}
	if !v.Contains(x0, y0, z0) || !v.Contains(x0+sizeX-1, y0+sizeY-1, z0+sizeZ-1) {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}
	region := make([]uint16, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := x0 + (y0+y)*v.width + (z0+z)*v.width*v.height
			dst := y*sizeX + z*sizeX*sizeY
			copy(region[dst:dst+sizeX], v.voxels[src:src+sizeX])
		}
	}
	return region, nil
}
